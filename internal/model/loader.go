package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/nn"
)

var (
	ErrArchitectureMismatch = errors.New("architecture mismatch")
	ErrLabelMismatch        = errors.New("label set does not match model outputs")
	ErrNoLabels             = errors.New("no labels supplied")
)

// Load reads the artifact at path and binds its weights.
//
// arch is the caller's pre-constructed architecture; it receives the weights
// of weights containers and raw weight mappings. A full learner artifact
// brings its own architecture and vocab: a fresh instance is built from the
// learner's spec and replaces arch, but only when that spec matches arch
// structurally. labels are used when the artifact has none of its own.
//
// Any failure is returned before a Model exists, so callers never see a
// partially bound model. Outcomes are logged to log.
func Load(path string, arch nn.Architecture, labels []string, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}

	m, err := load(path, arch, labels, log)
	if err != nil {
		log.Error("model load failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	log.Info("model loaded",
		zap.String("path", path),
		zap.Stringer("kind", m.kind),
		zap.String("arch", m.Spec().Name),
		zap.Strings("labels", m.labels),
		zap.String("digest", m.digest),
	)
	return m, nil
}

func load(path string, arch nn.Architecture, labels []string, log *zap.Logger) (*Model, error) {
	if arch == nil {
		return nil, errors.New("architecture is nil")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	a, err := artifact.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	switch a.Kind {
	case artifact.KindWeightsContainer, artifact.KindRawWeights:
		if err := nn.Bind(arch, a.Weights); err != nil {
			return nil, fmt.Errorf("failed to bind %s weights: %w", a.Kind, err)
		}

	case artifact.KindFullLearner:
		want := arch.Spec()
		if !nn.SameStructure(*a.Arch, want) {
			return nil, fmt.Errorf("%w: artifact has %s/%d classes/%d features, caller built %s/%d classes/%d features",
				ErrArchitectureMismatch,
				a.Arch.Name, a.Arch.NumClasses, a.Arch.Features,
				want.Name, want.NumClasses, want.Features)
		}
		adopted, err := nn.Build(*a.Arch)
		if err != nil {
			return nil, fmt.Errorf("failed to build learner architecture: %w", err)
		}
		if err := nn.Bind(adopted, a.Weights); err != nil {
			return nil, fmt.Errorf("failed to bind learner weights: %w", err)
		}
		arch = adopted

		if len(a.Vocab) > 0 {
			if len(labels) > 0 && !slices.Equal(labels, a.Vocab) {
				log.Warn("artifact vocab overrides configured labels",
					zap.Strings("configured", labels), zap.Strings("vocab", a.Vocab))
			}
			labels = a.Vocab
		}

	default:
		return nil, fmt.Errorf("%w: kind %s", artifact.ErrUnrecognized, a.Kind)
	}

	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	if n := arch.Spec().NumClasses; n != len(labels) {
		return nil, fmt.Errorf("%w: %d labels for %d outputs", ErrLabelMismatch, len(labels), n)
	}
	if err := checkLabels(labels); err != nil {
		return nil, err
	}

	arch.Eval()

	sum := blake3.Sum256(data)
	return &Model{
		arch:   arch,
		labels: slices.Clone(labels),
		kind:   a.Kind,
		digest: hex.EncodeToString(sum[:]),
	}, nil
}

// checkLabels rejects blank or repeated labels; either would collapse entries
// of the label to probability mapping.
func checkLabels(labels []string) error {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("%w: blank label", ErrLabelMismatch)
		}
		if seen[l] {
			return fmt.Errorf("%w: duplicate label %q", ErrLabelMismatch, l)
		}
		seen[l] = true
	}
	return nil
}
