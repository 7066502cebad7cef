package bot

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
)

// Resolver turns normalized (level, year, stream) references into
// concrete classes and streams, creating what is missing. All lookups
// are find-or-create and safe to repeat; pre-existing duplicate rows
// are tolerated with a deterministic tie-break, never an error.
type Resolver struct {
	client admin.Client
	logger core.Logger
}

func NewResolver(client admin.Client, logger core.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

func (r *Resolver) CurrentSetup(ctx context.Context, sess admin.Session) (admin.Setup, error) {
	setup, err := r.client.CurrentSetup(ctx, sess)
	return setup, errors.Wrap(err, "fetching academic setup")
}

// FindClass looks up the base class (no stream) for (level, yearID).
// Duplicate rows are resolved by picking the earliest-created (ID as
// tie-break) and logging a warning. Returns admin.ErrNotFound when no
// base class matches.
func (r *Resolver) FindClass(ctx context.Context, sess admin.Session, level string, yearID int) (admin.Class, error) {
	matches, err := r.client.SearchClasses(ctx, sess, admin.ClassQuery{Level: level, YearID: yearID})
	if err != nil {
		return admin.Class{}, errors.Wrap(err, "searching classes")
	}

	base := matches[:0:0]
	for _, cls := range matches {
		if cls.Stream == "" && strings.EqualFold(cls.Level, level) {
			base = append(base, cls)
		}
	}
	if len(base) == 0 {
		return admin.Class{}, admin.ErrNotFound
	}
	if len(base) > 1 {
		sort.Slice(base, func(i, j int) bool {
			if !base[i].CreatedAt.Equal(base[j].CreatedAt) {
				return base[i].CreatedAt.Before(base[j].CreatedAt)
			}
			return base[i].ID < base[j].ID
		})
		r.logger.Warn("duplicate base classes; picking earliest",
			map[string]interface{}{"level": level, "year": yearID, "count": len(base), "picked": base[0].ID})
	}
	return base[0], nil
}

// ResolveClass finds or creates the base class for (level, yearID).
// The second return reports whether a new class was created. A create
// that loses a race (conflict) falls back to the lookup.
func (r *Resolver) ResolveClass(ctx context.Context, sess admin.Session, level string, yearID int) (admin.Class, bool, error) {
	cls, err := r.FindClass(ctx, sess, level, yearID)
	if err == nil {
		return cls, false, nil
	}
	if errors.Cause(err) != admin.ErrNotFound {
		return admin.Class{}, false, err
	}

	cls, err = r.client.CreateClass(ctx, sess, admin.NewClass{Name: level, Level: level, YearID: yearID})
	if err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			cls, err = r.FindClass(ctx, sess, level, yearID)
			return cls, false, err
		}
		return admin.Class{}, false, errors.Wrap(err, "creating class")
	}
	return cls, true, nil
}

// EnsureStream adds the named stream to the class unless a stream with
// the same name (case-insensitively) already exists. Reports whether
// the stream was already there.
func (r *Resolver) EnsureStream(ctx context.Context, sess admin.Session, cls admin.Class, name string) (bool, error) {
	streams, err := r.client.ListStreams(ctx, sess, cls.ID)
	if err != nil {
		return false, errors.Wrap(err, "listing streams")
	}
	for _, st := range streams {
		if strings.EqualFold(st.Name, name) {
			return true, nil
		}
	}

	if _, err = r.client.AddStream(ctx, sess, cls.ID, name); err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			return true, nil
		}
		return false, errors.Wrap(err, "adding stream")
	}
	return false, nil
}

// StreamBuckets is the per-stream outcome of a multi-stream request.
type StreamBuckets struct {
	Added   []string
	Existed []string
	Failed  []string
}

// AddStreams attempts each requested stream independently and in
// order; one stream failing never blocks the others. Sub-calls run
// sequentially so each outcome maps unambiguously to its name.
func (r *Resolver) AddStreams(ctx context.Context, sess admin.Session, cls admin.Class, names []string) StreamBuckets {
	var buckets StreamBuckets
	for _, name := range names {
		existed, err := r.EnsureStream(ctx, sess, cls, name)
		switch {
		case err != nil:
			r.logger.Warn("adding stream failed",
				errors.Wrapf(err, "stream %q on class %d", name, cls.ID))
			buckets.Failed = append(buckets.Failed, name)
		case existed:
			buckets.Existed = append(buckets.Existed, name)
		default:
			buckets.Added = append(buckets.Added, name)
		}
	}
	return buckets
}

// StreamNames returns the class's current stream names for
// confirmation messaging.
func (r *Resolver) StreamNames(ctx context.Context, sess admin.Session, classID int) ([]string, error) {
	streams, err := r.client.ListStreams(ctx, sess, classID)
	if err != nil {
		return nil, errors.Wrap(err, "listing streams")
	}
	names := make([]string, 0, len(streams))
	for _, st := range streams {
		names = append(names, st.Name)
	}
	return names, nil
}
