package agc

import "github.com/pjotrp/agc/lzdiff"

const (
	// defaultSegmentSize is the expected segment length in bases.
	defaultSegmentSize = 60000

	// defaultKmerLength is the splitter k-mer length.
	defaultKmerLength = 21

	// defaultMinMatchLen is the codec's minimum back-reference length.
	defaultMinMatchLen = 20

	// maxAdaptiveCandidates caps how many group references the adaptive
	// mode ranks per segment.
	maxAdaptiveCandidates = 4
)

// BuildOption is a functional option for configuring archive builds.
type BuildOption func(*buildConfig)

type buildConfig struct {
	workers     int
	segmentSize int
	kmerLength  int
	minMatchLen int
	adaptive    bool
	cmdLine     string
	dialect     lzdiff.Version
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		workers:     1,
		segmentSize: defaultSegmentSize,
		kmerLength:  defaultKmerLength,
		minMatchLen: defaultMinMatchLen,
		dialect:     lzdiff.V2,
	}
}

// WithWorkers sets the number of parallel segment-compression workers.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithSegmentSize sets the expected segment size in bases.
func WithSegmentSize(n int) BuildOption {
	return func(c *buildConfig) {
		c.segmentSize = n
	}
}

// WithKmerLength sets the splitter k-mer length.
func WithKmerLength(k int) BuildOption {
	return func(c *buildConfig) {
		c.kmerLength = k
	}
}

// WithMinMatchLen sets the codec's minimum back-reference length.
// It is recorded in the archive header; readers need it to decode.
func WithMinMatchLen(n int) BuildOption {
	return func(c *buildConfig) {
		c.minMatchLen = n
	}
}

// WithAdaptive enables adaptive reference selection: segments are
// ranked against several group references by estimated cost, and
// segments that compress poorly against all of them are stored raw and
// become references themselves.
func WithAdaptive(enabled bool) BuildOption {
	return func(c *buildConfig) {
		c.adaptive = enabled
	}
}

// WithCmdLine records the invoking command line in the archive
// directory, where the info query reports it.
func WithCmdLine(line string) BuildOption {
	return func(c *buildConfig) {
		c.cmdLine = line
	}
}
