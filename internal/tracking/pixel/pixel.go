// Package pixel serves the open-tracking beacon image.
package pixel

// GIF is a 43-byte transparent 1x1 GIF89a, the smallest widely supported
// beacon image. Served for every open request, known tracking ID or not.
var GIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, // 1x1, global color table
	0xff, 0xff, 0xff, 0x00, 0x00, 0x00, // white, black
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, // graphic control, transparent
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, // image descriptor
	0x02, 0x02, 0x44, 0x01, 0x00, // image data
	0x3b, // trailer
}

// ContentType is the MIME type the beacon is served with.
const ContentType = "image/gif"
