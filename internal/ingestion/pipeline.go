package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/document"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/walker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/metrics"
)

// Writer is the part of *indexer.Writer a run drives.
type Writer interface {
	Add(doc document.Document) error
	Delete(identity string) error
	Identities(prefix string) []string
	RecordRoot(root string, files int)
	Commit(ctx context.Context) error
	MergeWith(ctx context.Context, policy indexer.MergePolicy) (*indexer.MergeResult, error)
	Generation() uint64
}

type Options struct {
	Rules   walker.FilterRules
	Builder *document.Builder
	// Validator may be nil to skip validation.
	Validator *validator.Validator
	// Policy runs after the commit. Nil means no merge.
	Policy  indexer.MergePolicy
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Pipeline struct {
	writer    Writer
	rules     walker.FilterRules
	builder   *document.Builder
	validator *validator.Validator
	policy    indexer.MergePolicy
	metrics   *metrics.Metrics
	logger    *slog.Logger
	prune     bool
}

// New builds a pipeline feeding writer. identityField is the index schema's
// identity field; vanished files are pruned only when it is the field the
// builder stores paths in.
func New(writer Writer, identityField string, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		writer:    writer,
		rules:     opts.Rules,
		builder:   opts.Builder,
		validator: opts.Validator,
		policy:    opts.Policy,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "ingestion"),
		prune:     identityField != "" && identityField == opts.Builder.PathField(),
	}
}

// Run indexes every root, commits once, and applies the merge policy. A
// failed or cancelled run commits nothing.
func (p *Pipeline) Run(ctx context.Context, roots ...string) (*RunSummary, error) {
	start := time.Now()
	if len(roots) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "index", "", "no directories to index")
	}
	summary := &RunSummary{}
	for _, root := range roots {
		canonical, err := CanonicalRoot(root)
		if err != nil {
			return nil, err
		}
		if err := p.indexRoot(ctx, canonical, summary); err != nil {
			return nil, err
		}
		summary.Roots = append(summary.Roots, canonical)
	}

	commitStart := time.Now()
	err := p.writer.Commit(ctx)
	if p.metrics != nil {
		p.metrics.CommitsTotal.WithLabelValues(metrics.Status(err)).Inc()
		p.metrics.CommitDuration.Observe(time.Since(commitStart).Seconds())
	}
	if err != nil {
		return nil, err
	}
	summary.Generation = p.writer.Generation()

	if p.policy != nil {
		merge, err := p.merge(ctx)
		if err != nil {
			return nil, err
		}
		if len(merge.Merged) > 0 {
			summary.Merge = merge
			summary.Generation = merge.Generation
		}
	}
	summary.Elapsed = time.Since(start)

	p.logger.Info("index run complete",
		"roots", len(summary.Roots),
		"seen", summary.Seen,
		"indexed", summary.Indexed,
		"skipped", summary.Skipped,
		"pruned", summary.Pruned,
		"generation", summary.Generation,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

func (p *Pipeline) merge(ctx context.Context) (*indexer.MergeResult, error) {
	result, err := p.writer.MergeWith(ctx, p.policy)
	if p.metrics != nil && (err != nil || len(result.Merged) > 0) {
		p.metrics.MergesTotal.WithLabelValues(metrics.Status(err)).Inc()
		if err == nil {
			p.metrics.MergeDuration.Observe(result.Duration.Seconds())
		}
	}
	return result, err
}

func (p *Pipeline) indexRoot(ctx context.Context, root string, summary *RunSummary) error {
	var previous []string
	if p.prune {
		previous = p.writer.Identities(root)
	}
	present := make(map[string]struct{})
	identityField := p.builder.PathField()

	w := walker.New(p.rules, walker.WithLogger(p.logger))
	indexed := 0
	for path := range w.Walk(ctx, root) {
		summary.Seen++
		if p.metrics != nil {
			p.metrics.FilesSeenTotal.Inc()
		}
		doc, c, ok := p.builder.Build(path)
		if !ok {
			p.skip(skipReason(c.Kind), summary)
			continue
		}
		if p.validator != nil {
			if err := p.validator.Validate(doc); err != nil {
				p.logger.Warn("skipping invalid document", "path", c.Path, "error", err)
				p.skip(SkipRejected, summary)
				continue
			}
		}
		if err := p.writer.Add(doc); err != nil {
			if errors.Is(err, apperrors.ErrIngest) {
				p.logger.Warn("skipping document", "path", c.Path, "error", err)
				p.skip(SkipRejected, summary)
				continue
			}
			return err
		}
		indexed++
		if p.metrics != nil {
			p.metrics.DocsIndexedTotal.Inc()
		}
		if identity, ok := doc.Get(identityField); ok {
			present[identity] = struct{}{}
		}
	}
	summary.Indexed += indexed
	summary.Warnings += w.Warnings()
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrIngest, "index", root, err)
	}

	for _, identity := range previous {
		if _, ok := present[identity]; ok {
			continue
		}
		if err := p.writer.Delete(identity); err != nil {
			return err
		}
		summary.Pruned++
		p.logger.Debug("pruned vanished file", "path", identity)
	}
	p.writer.RecordRoot(root, indexed)
	return nil
}

func (p *Pipeline) skip(reason SkipReason, summary *RunSummary) {
	summary.Skipped++
	if p.metrics != nil {
		p.metrics.FilesSkippedTotal.WithLabelValues(string(reason)).Inc()
	}
}

func skipReason(k document.Kind) SkipReason {
	if k == document.KindBinary {
		return SkipBinary
	}
	return SkipUnreadable
}

// CanonicalRoot resolves root to the absolute, symlink-free directory path
// used as the prefix of its documents' identities.
func CanonicalRoot(root string) (string, error) {
	if root == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, "index", root, "directory is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "index", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "index", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "index", root, err)
	}
	if !info.IsDir() {
		return "", apperrors.New(apperrors.ErrInvalidInput, "index", root, fmt.Sprintf("%s is not a directory", resolved))
	}
	return resolved, nil
}
