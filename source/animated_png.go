package source

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"time"
)

// Minimal APNG reader. The standard library decodes only the default
// (first) frame of a PNG; no APNG-aware decoder exists anywhere in the
// retrieval corpus, so this reads the acTL/fcTL/fdAT chunk sequence
// directly and reconstructs each frame's canvas by hand, same shape as
// decodeGIFFrames's disposal handling.

const (
	apngDisposeNone       = 0
	apngDisposeBackground = 1
	apngDisposePrevious   = 2

	apngBlendSource = 0
	apngBlendOver   = 1
)

type pngChunk struct {
	typ  string
	data []byte
}

func readPNGChunks(r io.Reader) ([]pngChunk, error) {
	sig := make([]byte, 8)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, err
	}

	var chunks []pngChunk
	for {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		typBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, typBytes); err != nil {
			return nil, err
		}
		data := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, err
			}
		}
		// CRC, discarded.
		if _, err := io.CopyN(io.Discard, r, 4); err != nil {
			return nil, err
		}

		typ := string(typBytes)
		chunks = append(chunks, pngChunk{typ: typ, data: data})
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

type apngFrameControl struct {
	width, height   int
	xOffset, yOffset int
	delayNum, delayDen uint16
	dispose, blend  byte
}

func parseFCTL(data []byte) apngFrameControl {
	return apngFrameControl{
		width:    int(binary.BigEndian.Uint32(data[4:8])),
		height:   int(binary.BigEndian.Uint32(data[8:12])),
		xOffset:  int(binary.BigEndian.Uint32(data[12:16])),
		yOffset:  int(binary.BigEndian.Uint32(data[16:20])),
		delayNum: binary.BigEndian.Uint16(data[20:22]),
		delayDen: binary.BigEndian.Uint16(data[22:24]),
		dispose:  data[24],
		blend:    data[25],
	}
}

// decodeAPNGFrames decodes an APNG (or falls back to a single-frame
// static PNG) into full-canvas RGBA images.
func decodeAPNGFrames(path string) ([]animatedFrame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	chunks, err := readPNGChunks(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	hasACTL := false
	for _, c := range chunks {
		if c.typ == "acTL" {
			hasACTL = true
			break
		}
	}
	if !hasACTL {
		img, err := decodeImageFile(path)
		if err != nil {
			return nil, err
		}
		return []animatedFrame{{Image: toRGBA(img), Delay: minFrameDelay}}, nil
	}

	var ihdr []byte
	var plte, trns []byte
	type rawFrame struct {
		ctrl apngFrameControl
		idat [][]byte
	}
	var frames []rawFrame
	var current *rawFrame

	for _, c := range chunks {
		switch c.typ {
		case "IHDR":
			ihdr = c.data
		case "PLTE":
			plte = c.data
		case "tRNS":
			trns = c.data
		case "acTL":
			// num_frames / num_plays, not needed: we play every
			// fcTL-delimited frame once and loop is the caller's concern.
		case "fcTL":
			ctrl := parseFCTL(c.data)
			frames = append(frames, rawFrame{ctrl: ctrl})
			current = &frames[len(frames)-1]
		case "IDAT":
			if current != nil {
				current.idat = append(current.idat, c.data)
			}
		case "fdAT":
			if len(c.data) < 4 {
				continue
			}
			if current != nil {
				current.idat = append(current.idat, c.data[4:])
			}
		}
	}

	if len(ihdr) < 13 {
		return nil, fmt.Errorf("apng: missing IHDR")
	}
	width := int(binary.BigEndian.Uint32(ihdr[0:4]))
	height := int(binary.BigEndian.Uint32(ihdr[4:8]))
	bitDepth := ihdr[8]
	colorType := ihdr[9]

	if bitDepth != 8 {
		return decodeAPNGFallbackSingleFrame(path)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	var previous *image.RGBA

	out := make([]animatedFrame, 0, len(frames))
	for _, rf := range frames {
		sub, err := decodeFrameIDAT(rf.idat, rf.ctrl.width, rf.ctrl.height, colorType, plte, trns)
		if err != nil {
			return nil, err
		}

		if rf.ctrl.dispose == apngDisposePrevious {
			snap := image.NewRGBA(canvas.Bounds())
			copy(snap.Pix, canvas.Pix)
			previous = snap
		}

		dstRect := image.Rect(rf.ctrl.xOffset, rf.ctrl.yOffset,
			rf.ctrl.xOffset+rf.ctrl.width, rf.ctrl.yOffset+rf.ctrl.height)

		if rf.ctrl.blend == apngBlendSource {
			drawSrc(canvas, dstRect, sub)
		} else {
			drawOver(canvas, dstRect, sub)
		}

		frameOut := image.NewRGBA(canvas.Bounds())
		copy(frameOut.Pix, canvas.Pix)

		delayNum, delayDen := rf.ctrl.delayNum, rf.ctrl.delayDen
		if delayDen == 0 {
			delayDen = 100
		}
		delayMS := int64(delayNum) * 1000 / int64(delayDen)

		out = append(out, animatedFrame{Image: frameOut, Delay: msDuration(delayMS)})

		switch rf.ctrl.dispose {
		case apngDisposeBackground:
			clearRect(canvas, dstRect)
		case apngDisposePrevious:
			if previous != nil {
				copy(canvas.Pix, previous.Pix)
			}
		}
	}

	return out, nil
}

func decodeAPNGFallbackSingleFrame(path string) ([]animatedFrame, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return nil, err
	}
	return []animatedFrame{{Image: toRGBA(img), Delay: minFrameDelay}}, nil
}

// decodeFrameIDAT inflates one frame's concatenated IDAT/fdAT payload and
// un-filters it per the PNG scanline algorithm, producing an RGBA image.
// Only 8-bit truecolor (RGB/RGBA), grayscale and paletted color types are
// decoded; any other color type (e.g. grayscale with alpha) yields a fully
// transparent frame of the frame's size rather than failing the whole
// animation.
func decodeFrameIDAT(idat [][]byte, width, height int, colorType byte, plte, trns []byte) (*image.RGBA, error) {
	var buf bytes.Buffer
	for _, chunk := range idat {
		buf.Write(chunk)
	}

	zr, err := zlib.NewReader(&buf)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	var channels int
	switch colorType {
	case 2: // truecolor
		channels = 3
	case 6: // truecolor + alpha
		channels = 4
	case 3: // paletted
		channels = 1
	case 0: // grayscale
		channels = 1
	default:
		return image.NewRGBA(image.Rect(0, 0, width, height)), nil
	}

	stride := width*channels + 1
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	prevRow := make([]byte, width*channels)

	for y := 0; y < height; y++ {
		rowStart := y * stride
		if rowStart+stride > len(raw) {
			break
		}
		filterType := raw[rowStart]
		row := make([]byte, width*channels)
		copy(row, raw[rowStart+1:rowStart+stride])
		unfilterRow(filterType, row, prevRow, channels)

		for x := 0; x < width; x++ {
			var r, g, b, a byte = 0, 0, 0, 255
			switch colorType {
			case 2:
				off := x * 3
				r, g, b = row[off], row[off+1], row[off+2]
			case 6:
				off := x * 4
				r, g, b, a = row[off], row[off+1], row[off+2], row[off+3]
			case 0:
				r = row[x]
				g, b = r, r
			case 3:
				idx := int(row[x])
				if plte != nil && idx*3+2 < len(plte) {
					r, g, b = plte[idx*3], plte[idx*3+1], plte[idx*3+2]
				}
				if trns != nil && idx < len(trns) {
					a = trns[idx]
				}
			}
			off := img.PixOffset(x, y)
			img.Pix[off] = r
			img.Pix[off+1] = g
			img.Pix[off+2] = b
			img.Pix[off+3] = a
		}

		prevRow = row
	}

	return img, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func unfilterRow(filterType byte, row, prevRow []byte, channels int) {
	for i := range row {
		var a, b, c byte
		if i >= channels {
			a = row[i-channels]
		}
		b = prevRow[i]
		if i >= channels {
			c = prevRow[i-channels]
		}
		switch filterType {
		case 1:
			row[i] += a
		case 2:
			row[i] += b
		case 3:
			row[i] += byte((int(a) + int(b)) / 2)
		case 4:
			row[i] += paeth(a, b, c)
		}
	}
}

func drawSrc(dst *image.RGBA, rect image.Rectangle, src *image.RGBA) {
	for y := 0; y < rect.Dy(); y++ {
		srcOff := src.PixOffset(0, y)
		dstOff := dst.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(dst.Pix[dstOff:dstOff+rect.Dx()*4], src.Pix[srcOff:srcOff+rect.Dx()*4])
	}
}

func drawOver(dst *image.RGBA, rect image.Rectangle, src *image.RGBA) {
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			so := src.PixOffset(x, y)
			sr, sg, sb, sa := src.Pix[so], src.Pix[so+1], src.Pix[so+2], src.Pix[so+3]
			if sa == 255 || sa == 0 {
				if sa == 0 {
					continue
				}
				do := dst.PixOffset(rect.Min.X+x, rect.Min.Y+y)
				dst.Pix[do], dst.Pix[do+1], dst.Pix[do+2], dst.Pix[do+3] = sr, sg, sb, sa
				continue
			}
			do := dst.PixOffset(rect.Min.X+x, rect.Min.Y+y)
			dr, dg, db, da := dst.Pix[do], dst.Pix[do+1], dst.Pix[do+2], dst.Pix[do+3]
			af := float64(sa) / 255
			dst.Pix[do] = blendChannel(sr, dr, af)
			dst.Pix[do+1] = blendChannel(sg, dg, af)
			dst.Pix[do+2] = blendChannel(sb, db, af)
			dst.Pix[do+3] = byte(float64(sa) + float64(da)*(1-af))
		}
	}
}

func blendChannel(src, dst byte, alpha float64) byte {
	return byte(float64(src)*alpha + float64(dst)*(1-alpha))
}

func clearRect(img *image.RGBA, rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		off := img.PixOffset(rect.Min.X, y)
		for i := 0; i < rect.Dx()*4; i++ {
			img.Pix[off+i] = 0
		}
	}
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
