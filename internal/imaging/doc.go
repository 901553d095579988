// Package imaging handles the image side of a labelme dataset: probing image
// dimensions and materializing images that only exist as an embedded
// "imageData" payload.
//
// # Dimension Probing
//
// COCO output needs the pixel size of every exported image. Probing decodes
// only the image header (image.DecodeConfig), so it is cheap even for large
// files. DimensionCache memoizes probes by absolute path and is safe for
// concurrent use; an MCP server keeps one for its lifetime.
//
// Supported formats: PNG, JPEG, GIF, BMP, TIFF and WebP.
//
// # Embedded Payloads
//
// labelme can store the image itself as base64 in the annotation file. When
// the referenced image file is missing, the payload is decoded and written
// next to the output. If the payload's format matches the destination
// extension its bytes are written unchanged; otherwise it is decoded and
// re-encoded to the destination format.
package imaging
