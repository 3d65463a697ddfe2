package mime

import (
	"strings"
)

type (
	Type    int32
	TypeMap map[string]Type
)

const (
	TypeUnknown Type = iota - 1

	TypeText
	TypeImage
	TypePath

	TypeAudio
	TypeVideo
	TypeBinary
)

func (t Type) IsImage() bool { return t == TypeImage }
func (t Type) IsText() bool  { return t == TypeText }
func (t Type) IsPath() bool  { return t == TypePath }

func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeImage:
		return "image"
	case TypePath:
		return "path"
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	case TypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

var (
	imageTypes = TypeMap{
		"image/png":  TypeImage,
		"image/jpeg": TypeImage,
		"image/jpg":  TypeImage,
		"image/gif":  TypeImage,
		"image/bmp":  TypeImage,
		"image/tiff": TypeImage,
		"image/webp": TypeImage,
	}

	// selection target names are case sensitive on X11 but the
	// well known text atoms never collide with mime names
	textTypes = TypeMap{
		"text/plain":               TypeText,
		"text/plain;charset=utf-8": TypeText,
		"text/html":                TypeText,
		"utf8_string":              TypeText,
		"compound_text":            TypeText,
		"text":                     TypeText,
		"string":                   TypeText,
		"public.utf8-plain-text":   TypeText,
	}

	pathTypes = TypeMap{
		"text/uri-list":                TypePath,
		"application/x-cf-hdrop":       TypePath,
		"application/x-ms-hdrop":       TypePath,
		"x-special/gnome-copied-files": TypePath,
	}

	supportedTypes TypeMap
)

func init() {
	supportedTypes = make(TypeMap, len(imageTypes)+len(textTypes)+len(pathTypes))
	for _, m := range []TypeMap{imageTypes, textTypes, pathTypes} {
		for k, v := range m {
			supportedTypes[k] = v
		}
	}
}

// AsType classifies a selection target or mime type.
func AsType(target string) Type {
	if typ, ok := supportedTypes[strings.ToLower(target)]; ok {
		return typ
	}

	ct := normalize(target)
	if typ, ok := supportedTypes[ct]; ok {
		return typ
	}

	switch {
	case strings.HasPrefix(ct, "image/"):
		return TypeImage
	case strings.HasPrefix(ct, "text/"):
		return TypeText
	case strings.HasPrefix(ct, "video/"):
		return TypeVideo
	case strings.HasPrefix(ct, "audio/"):
		return TypeAudio
	case strings.HasPrefix(ct, "application/"):
		return TypeBinary
	default:
		return TypeUnknown
	}
}

func normalize(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
