package overlay

import "errors"

// Failure classes the engine reports. They arrive wrapped with page and
// word context; callers classify with errors.Is.
var (
	// ErrInvalidPageMetadata marks raster metadata the mapper cannot
	// scale by: zero or negative pixel dimensions.
	ErrInvalidPageMetadata = errors.New("overlay: invalid page metadata")

	// ErrUnsupportedPageStructure marks pages the merger refuses to
	// touch, such as content streams shared between pages.
	ErrUnsupportedPageStructure = errors.New("overlay: unsupported page structure")

	// ErrEmptyDocument means the parsed input has no pages.
	ErrEmptyDocument = errors.New("overlay: document has no pages")

	// ErrMalformedInput means the input bytes could not be parsed as a
	// PDF the engine can work on. Encrypted files land here too.
	ErrMalformedInput = errors.New("overlay: malformed input document")

	// ErrLayerConstructionFailed marks a word whose invisible text
	// instruction could not be built, typically unencodable characters.
	ErrLayerConstructionFailed = errors.New("overlay: text layer construction failed")
)
