package valueobjects

import "strings"

// ImageRef is an opaque image reference: an http(s) URL, a blob URL served by
// this service, or an inline base64 data URL. Callers pass it through without
// inspecting it; only the image resolver looks inside.
type ImageRef string

func (r ImageRef) String() string {
	return string(r)
}

func (r ImageRef) IsZero() bool {
	return r == ""
}

func (r ImageRef) IsDataURL() bool {
	return strings.HasPrefix(string(r), "data:")
}
