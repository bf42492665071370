package baobab

import "github.com/pkg/errors"

// Errors returned by Decode and DecodeStream. Callers that need to
// distinguish causes should use errors.Is against these sentinels;
// wrapped context is added with errors.Wrapf.
var (
	// ErrTruncated means the input ended before a complete entry could
	// be read.
	ErrTruncated = errors.New("baobab: truncated entry")

	// ErrBadTag means the entry's tag byte was not one this module
	// understands. The decoder otherwise never validates the fields it
	// reads; this is the one added guard, since every entry this module
	// writes carries entryTag and nothing downstream expects another
	// kind.
	ErrBadTag = errors.New("baobab: unsupported entry tag")

	// ErrBadBinary means DecodeStream hit an entry it could not parse
	// partway through a concatenated stream. Package validate carries
	// its own sentinels for a link present or absent against what its
	// seqnum requires, since that is a validation rule Decode itself
	// never checks (link presence there is derived from seqnum, not a
	// separate wire field that could disagree with it).
	ErrBadBinary = errors.New("baobab: malformed entry stream")
)

// entryTag is the only entry tag this implementation writes or accepts.
// The format reserves the tag byte for future entry kinds (e.g.
// end-of-feed markers); this module implements ordinary data entries
// only.
const entryTag = 0x00
