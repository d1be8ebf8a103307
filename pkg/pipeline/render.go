package pipeline

import (
	"bytes"
	"context"
	"time"

	"github.com/matzehuels/makegraph/pkg/dag"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/graph"
	"github.com/matzehuels/makegraph/pkg/observability"
	"github.com/matzehuels/makegraph/pkg/render/nodelink"
)

// Render serializes g in opts.Format. The whole document is produced in
// memory so the caller can write it in one call, or not at all.
func Render(ctx context.Context, g *dag.DAG, opts Options) ([]byte, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Format)
	data, err := render(ctx, g, opts)
	observability.Pipeline().OnRenderComplete(ctx, opts.Format, len(data), time.Since(start), err)
	return data, err
}

func render(ctx context.Context, g *dag.DAG, opts Options) ([]byte, error) {
	switch opts.Format {
	case FormatDOT:
		var buf bytes.Buffer
		if err := nodelink.WriteDOT(&buf, g, opts.DOTOptions()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := graph.MarshalGraph(g)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "serialize graph")
		}
		return data, nil
	case FormatSVG:
		return nodelink.RenderSVG(ctx, nodelink.ToDOT(g, opts.DOTOptions()))
	case FormatPNG:
		return nodelink.RenderPNG(ctx, nodelink.ToDOT(g, opts.DOTOptions()), opts.PNGScale)
	case FormatPDF:
		return nodelink.RenderPDF(ctx, nodelink.ToDOT(g, opts.DOTOptions()))
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported format: %s", opts.Format)
	}
}
