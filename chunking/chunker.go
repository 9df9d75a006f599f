// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package chunking splits extracted text into overlapping, sentence-aligned chunks.
package chunking

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of runes shared by adjacent chunks.
	DefaultChunkOverlap = 200
)

// Segment is one chunk of text and its rune span [Start, End) in the source.
type Segment struct {
	Index   int
	Content string
	Start   int
	End     int
}

// Chunker splits text into segments of at most Size runes.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker. An overlap that is not smaller than the chunk size
// is reduced to a quarter of the size.
func New(opts ...Option) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into segments. Each segment ends at the last sentence
// boundary inside its window when one falls in the second half of the window,
// and at the window edge otherwise. Every segment after the first starts no
// later than the previous one ends, so the spans cover the text without gaps.
// Text that is empty or only whitespace yields no segments.
func (c *Chunker) Split(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)

	var segments []Segment
	start := 0
	for start < n {
		end := min(start+c.size, n)
		if end < n {
			if cut := sentenceBoundary(runes, start+c.size/2, end); cut > 0 {
				end = cut
			}
		}
		segments = append(segments, Segment{
			Index:   len(segments),
			Content: string(runes[start:end]),
			Start:   start,
			End:     end,
		})
		if end == n {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return segments
}

// sentenceBoundary returns the rune offset just past the last sentence end
// in runes[from:to], or 0 when there is none. A sentence ends at a newline
// or at terminal punctuation followed by whitespace.
func sentenceBoundary(runes []rune, from, to int) int {
	for i := to - 1; i > from; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
		if unicode.IsSpace(runes[i]) && isTerminal(runes[i-1]) {
			return i + 1
		}
	}
	return 0
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
