package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/signalsfoundry/hoc-contagion/hypergraph"
	"github.com/signalsfoundry/hoc-contagion/model"
)

// ErrMalformedDataset marks nverts/simplices input that cannot be turned into
// a hypergraph. It is always fatal and is reported before any simulation.
var ErrMalformedDataset = errors.New("malformed dataset")

// DatasetSummary describes what LoadDataset produced.
type DatasetSummary struct {
	Simplices  int // entries in the nverts stream
	Hyperedges int // hyperedges added after deduplication
	Duplicates int // simplices dropped because their node set was already added
	Nodes      int
}

// LoadDataset reconstructs a hypergraph from two parallel streams: nverts
// lists the size of each simplex, simplices is the flattened node-id stream.
// Each simplex consumes nverts[i] ids. Simplices with the same node set are
// added once. The sizes must consume the simplices stream exactly.
func LoadDataset(nverts, simplices io.Reader) (*hypergraph.Hypergraph, *DatasetSummary, error) {
	sizes, err := readInts(nverts, "nverts")
	if err != nil {
		return nil, nil, err
	}
	ids, err := readInts(simplices, "simplices")
	if err != nil {
		return nil, nil, err
	}

	var total int64
	for i, n := range sizes {
		if n <= 0 {
			return nil, nil, fmt.Errorf("%w: nverts entry %d has non-positive size %d", ErrMalformedDataset, i+1, n)
		}
		total += n
	}
	if total != int64(len(ids)) {
		return nil, nil, fmt.Errorf("%w: nverts sums to %d node ids but simplices has %d", ErrMalformedDataset, total, len(ids))
	}

	h := hypergraph.New()
	summary := &DatasetSummary{Simplices: len(sizes)}
	added := make(map[model.HyperedgeKey]struct{}, len(sizes))

	var start int64
	for _, n := range sizes {
		members := make([]model.NodeID, n)
		for j, id := range ids[start : start+n] {
			members[j] = model.NodeID(strconv.FormatInt(id, 10))
		}
		start += n

		key := model.NewHyperedge(members...).Key()
		if _, dup := added[key]; dup {
			summary.Duplicates++
			continue
		}
		added[key] = struct{}{}
		h.AddHyperedge(members...)
	}

	summary.Hyperedges = h.NumHyperedges()
	summary.Nodes = h.NumNodes()
	return h, summary, nil
}

// LoadDatasetFiles opens both files and calls LoadDataset.
func LoadDatasetFiles(nvertsPath, simplicesPath string) (*hypergraph.Hypergraph, *DatasetSummary, error) {
	nf, err := os.Open(nvertsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open nverts file %q: %w", nvertsPath, err)
	}
	defer nf.Close()

	sf, err := os.Open(simplicesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open simplices file %q: %w", simplicesPath, err)
	}
	defer sf.Close()

	return LoadDataset(nf, sf)
}

// readInts parses whitespace-separated integers, one or more per line.
// Blank lines are ignored.
func readInts(r io.Reader, name string) ([]int64, error) {
	var out []int64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		for _, tok := range strings.Fields(sc.Text()) {
			v, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %q is not an integer", ErrMalformedDataset, name, line, tok)
			}
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}
