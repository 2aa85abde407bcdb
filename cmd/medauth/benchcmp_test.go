package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineBench = `goos: linux
goarch: amd64
pkg: github.com/meddevice/medauth
BenchmarkAuthenticate-8          	  400000	      3000 ns/op	    1200 B/op	      20 allocs/op
BenchmarkAuthenticate-8          	  400000	      3100 ns/op	    1200 B/op	      20 allocs/op
BenchmarkAuthenticate-8          	  400000	      2900 ns/op	    1200 B/op	      20 allocs/op
BenchmarkAuthorizeOwnRecord-8    	 9000000	       120 ns/op	       0 B/op	       0 allocs/op
BenchmarkAuthorizeDenied-8       	 1000000	      1500 ns/op	     900 B/op	      12 allocs/op
BenchmarkLogin-8                 	      50	  20000000 ns/op	 8400000 B/op	      90 allocs/op
BenchmarkMetricsInc-8            	90000000	        12 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)

	assert.Equal(t, []float64{3000, 3100, 2900}, samples["BenchmarkAuthenticate"]["ns/op"])
	assert.Equal(t, []float64{0}, samples["BenchmarkAuthorizeOwnRecord"]["allocs/op"])
	assert.NotContains(t, samples, "BenchmarkMetricsInc", "untracked benchmarks are skipped")
}

func TestCompareBenchmarks(t *testing.T) {
	base, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, compareBenchmarks(&out, base, base, defaultRegressionThreshold))
	assert.Contains(t, out.String(), "BenchmarkAuthenticate ns/op 3000.000 3000.000 +0.00%")

	slower := strings.ReplaceAll(baselineBench, "20000000 ns/op", "40000000 ns/op")
	cand, err := parseBenchmarks(strings.NewReader(slower))
	require.NoError(t, err)

	err = compareBenchmarks(&out, base, cand, defaultRegressionThreshold)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BenchmarkLogin ns/op regressed by +100.00%")

	allocating := strings.Replace(baselineBench, "0 B/op\t       0 allocs/op", "16 B/op\t       1 allocs/op", 1)
	cand, err = parseBenchmarks(strings.NewReader(allocating))
	require.NoError(t, err)
	err = compareBenchmarks(&out, base, cand, defaultRegressionThreshold)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BenchmarkAuthorizeOwnRecord allocs/op grew from 0 to 1")
}

func TestCompareBenchmarksMissingSamples(t *testing.T) {
	base, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)

	err = compareBenchmarks(&bytes.Buffer{}, base, sampleSet{}, defaultRegressionThreshold)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing samples for BenchmarkLogin ns/op")
}

func TestBenchCompareCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.txt")
	require.NoError(t, os.WriteFile(path, []byte(baselineBench), 0o600))

	out, err := execute(t, "", "bench-compare", "--baseline", path, "--candidate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "BenchmarkLogin ns/op")

	_, err = execute(t, "", "bench-compare", "--baseline", path)
	assert.Error(t, err)
}

func TestNormalizeBenchmarkName(t *testing.T) {
	assert.Equal(t, "BenchmarkLogin", normalizeBenchmarkName("BenchmarkLogin-16"))
	assert.Equal(t, "BenchmarkLogin", normalizeBenchmarkName("BenchmarkLogin"))
	assert.Equal(t, "BenchmarkA-b", normalizeBenchmarkName("BenchmarkA-b"))
}
