package graph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/graph-analysis/pkg/compression"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/parallel"
	"github.com/graph-analysis/pkg/termination"
	"github.com/graph-analysis/pkg/utils"
)

// LoadOptions controls edge list parsing.
type LoadOptions struct {
	// Undirected stores every edge in both directions.
	Undirected bool
	// DenseIDs treats ids as dense node ids instead of remapping them.
	DenseIDs bool
	// Logger receives load statistics. Defaults to the global logger.
	Logger utils.Logger
}

// checkEvery is how many lines are parsed between termination checks.
const checkEvery = 1 << 16

// LoadEdgeList parses "src dst [weight]" lines. Blank lines and lines
// starting with '#' or '%' are skipped. gzip and zstd input is detected and
// decompressed transparently.
func LoadEdgeList(ctx context.Context, r io.Reader, exec *parallel.Executor, flag termination.Flag, opts LoadOptions) (*Graph, error) {
	logger := utils.OrGlobal(opts.Logger)

	rc, ctype, err := compression.NewReader(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to open edge list", err)
	}
	defer rc.Close()

	var builderOpts []BuilderOption
	if opts.Undirected {
		builderOpts = append(builderOpts, Undirected())
	}
	ids := NewIDMap()
	if !opts.DenseIDs {
		builderOpts = append(builderOpts, WithIDMap(ids))
	}
	b := NewBuilder(builderOpts...)

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lineNo int64
	for scanner.Scan() {
		lineNo++
		if lineNo%checkEvery == 0 {
			if err := flag.AssertRunning(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '%' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, parseError(lineNo, "expected 2 or 3 fields, got %d", len(fields))
		}

		src, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, parseError(lineNo, "invalid source %q", fields[0])
		}
		dst, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, parseError(lineNo, "invalid target %q", fields[1])
		}
		if !opts.DenseIDs {
			src, dst = ids.Add(src), ids.Add(dst)
		}

		if len(fields) == 3 {
			w, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, parseError(lineNo, "invalid weight %q", fields[2])
			}
			b.AddWeightedEdge(src, dst, w)
		} else {
			b.AddEdge(src, dst)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to read edge list", err)
	}

	g, err := b.Build(ctx, exec, flag)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded graph: nodes=%d edges=%d lines=%d compression=%s",
		g.NodeCount(), g.EdgeCount(), lineNo, ctype)
	return g, nil
}

// LoadEdgeListFile opens path and calls LoadEdgeList.
func LoadEdgeListFile(ctx context.Context, path string, exec *parallel.Executor, flag termination.Flag, opts LoadOptions) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()
	return LoadEdgeList(ctx, f, exec, flag, opts)
}

func parseError(line int64, format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.CodeParseError, "line %d: %s", line, fmt.Sprintf(format, args...))
}
