package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"

	"golang.org/x/image/draw"
)

// PerceptualDuplicateThreshold is the maximum hamming distance (in bits)
// between two perceptual hashes for the images to count as the same content.
// Tolerates recompression and mild resizing while rejecting unrelated images.
const PerceptualDuplicateThreshold = 10

// ExactHash returns the hex-encoded sha256 of the content. Used as the dedup
// key and as the filename stem for content-addressed storage.
func ExactHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ImageAHash computes a 64-bit average-hash fingerprint: the image is scaled
// to an 8x8 grayscale grid and bit i is set when pixel i (row-major) is at or
// above the mean luminance. Returns false when the payload does not decode as
// an image.
func ImageAHash(content []byte) (uint64, bool) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return 0, false
	}
	return aHash(img), true
}

// ImageAHashFile computes the perceptual hash of an image file on disk.
func ImageAHashFile(path string) (uint64, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return ImageAHash(content)
}

// HammingDistance counts differing bits between two 64-bit fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func aHash(img image.Image) uint64 {
	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	// gray.Pix holds exactly the 64 grid pixels in row-major order.
	var sum int
	for _, p := range gray.Pix {
		sum += int(p)
	}
	mean := float64(sum) / 64.0

	var fingerprint uint64
	for i, p := range gray.Pix {
		if float64(p) >= mean {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}
