// Package maintenance verifies that every cataloged dataset still has its
// snapshot in the object store.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sheetsense/sheetsense/internal/catalog"
	"github.com/sheetsense/sheetsense/internal/storage"
)

const maxIssueSamples = 20

// Datasets is the dataset store view the checker needs. Delete must drop
// the catalog record together with any cached copy.
type Datasets interface {
	List(ctx context.Context) ([]catalog.Dataset, error)
	Delete(ctx context.Context, name string) error
}

type Config struct {
	IntegrityInterval time.Duration
	// PruneMissing deletes datasets whose snapshot object is gone.
	PruneMissing bool
}

type Service struct {
	Datasets    Datasets
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
}

type IntegritySummary struct {
	DatasetsScanned     int      `json:"datasets_scanned"`
	MissingSnapshots    int      `json:"missing_snapshots"`
	SizeMismatches      int      `json:"size_mismatches"`
	Pruned              int      `json:"pruned"`
	OperationalFailures int      `json:"operational_failures"`
	Issues              []string `json:"issues,omitempty"`
}

// Run checks integrity every Config.IntegrityInterval until ctx is done.
// A zero interval disables the loop.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()
	if s.Config.IntegrityInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.Config.IntegrityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunIntegrityCheckOnce(ctx)
			if err != nil {
				s.Logger.ErrorContext(ctx, "integrity check failed", slog.Any("error", err), slog.Any("summary", summary))
				continue
			}
			s.Logger.InfoContext(ctx, "integrity check completed", slog.Any("summary", summary))
		}
	}
}

func (s *Service) RunIntegrityCheckOnce(ctx context.Context) (IntegritySummary, error) {
	s.ensureDefaults()
	if s.Datasets == nil {
		return IntegritySummary{}, fmt.Errorf("dataset store is required")
	}
	if s.ObjectStore == nil {
		return IntegritySummary{}, fmt.Errorf("object store is required")
	}

	datasets, err := s.Datasets.List(ctx)
	if err != nil {
		integrityRunsTotal.WithLabelValues("failed").Inc()
		return IntegritySummary{}, fmt.Errorf("list datasets: %w", err)
	}

	summary := IntegritySummary{DatasetsScanned: len(datasets)}
	issueCount := 0
	addIssue := func(message string) {
		issueCount++
		if len(summary.Issues) < maxIssueSamples {
			summary.Issues = append(summary.Issues, message)
		}
	}

	for _, ds := range datasets {
		info, err := s.ObjectStore.Stat(ctx, ds.ObjectKey)
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			summary.MissingSnapshots++
			if !s.Config.PruneMissing {
				addIssue(fmt.Sprintf("dataset %s missing snapshot %s", ds.Name, ds.ObjectKey))
				continue
			}
			if err := s.Datasets.Delete(ctx, ds.Name); err != nil {
				summary.OperationalFailures++
				addIssue(fmt.Sprintf("dataset %s prune: %v", ds.Name, err))
				continue
			}
			summary.Pruned++
			s.Logger.WarnContext(ctx, "pruned dataset with missing snapshot",
				slog.String("dataset", ds.Name),
				slog.String("object_key", ds.ObjectKey),
			)
		case err != nil:
			summary.OperationalFailures++
			addIssue(fmt.Sprintf("dataset %s stat %s: %v", ds.Name, ds.ObjectKey, err))
		case ds.SizeBytes > 0 && info.Size != ds.SizeBytes:
			summary.SizeMismatches++
			addIssue(fmt.Sprintf("dataset %s size mismatch for %s (expected=%d actual=%d)", ds.Name, ds.ObjectKey, ds.SizeBytes, info.Size))
		}
	}

	integrityDatasetsCheckedTotal.Add(float64(summary.DatasetsScanned))
	if summary.MissingSnapshots > 0 {
		integrityMissingSnapshotsTotal.Add(float64(summary.MissingSnapshots))
	}
	if summary.Pruned > 0 {
		integrityPrunedTotal.Add(float64(summary.Pruned))
	}
	if issueCount > 0 {
		integrityRunsTotal.WithLabelValues("failed").Inc()
		if extra := issueCount - len(summary.Issues); extra > 0 {
			return summary, fmt.Errorf("integrity check found %d issue(s): %s; ... plus %d more", issueCount, strings.Join(summary.Issues, "; "), extra)
		}
		return summary, fmt.Errorf("integrity check found %d issue(s): %s", issueCount, strings.Join(summary.Issues, "; "))
	}
	integrityRunsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
