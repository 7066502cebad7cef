package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core/admin"
)

func (s *Service) handleCreateClass(ctx context.Context, utt Utterance, slots Slots) Result {
	level, single := classRef(utt)
	if level == "" {
		return Result{Replies: []string{
			"Which class should I create? For example: 'create grade 7 with streams blue and red'.",
		}}
	}

	streams := s.requestedStreams(utt, slots, level, single)
	return s.applyClassAndStreams(ctx, utt.Session, level, streams)
}

func (s *Service) handleAddStreamToClass(ctx context.Context, utt Utterance, slots Slots) Result {
	level, single := classRef(utt)
	if level == "" {
		return Result{Replies: []string{
			"Which class am I adding streams to? For example: 'add stream green to class 5'.",
		}}
	}

	streams := s.requestedStreams(utt, slots, level, single)
	if len(streams) == 0 {
		return Result{Replies: []string{
			fmt.Sprintf("Which stream should I add to %s?", level),
		}}
	}
	return s.applyClassAndStreams(ctx, utt.Session, level, streams)
}

// requestedStreams gathers the streams named this turn: the stream
// entity, the vocabulary extraction over the raw text, and, when both
// come up empty, a previously held single-stream slot value.
func (s *Service) requestedStreams(utt Utterance, slots Slots, level, single string) []string {
	streams := s.extractor.ExtractAllStreams(utt.Text, level)
	if ent := utt.Entity(EntityStream); ent != "" {
		if name, ok := NormalizeStreamName(ent, level); ok && name != "" {
			streams = mergeStream(streams, name)
		}
	}
	if single != "" {
		streams = mergeStream(streams, single)
	}
	if len(streams) == 0 {
		if held, ok := NormalizeStreamName(slots.Get(SlotStream), level); ok && held != "" {
			streams = []string{held}
		}
	}
	return streams
}

func mergeStream(streams []string, name string) []string {
	for _, st := range streams {
		if strings.EqualFold(st, name) {
			return streams
		}
	}
	return append(streams, name)
}

// applyClassAndStreams is the terminal operation shared by class
// creation and stream addition: find-or-create the base class, then
// attempt each stream independently and report all three outcome
// buckets distinctly.
func (s *Service) applyClassAndStreams(ctx context.Context, sess admin.Session, level string, streams []string) Result {
	setup, stop := s.requireSetup(ctx, sess)
	if stop != nil {
		return *stop
	}

	cls, created, err := s.resolver.ResolveClass(ctx, sess, level, setup.Year.ID)
	if err != nil {
		return s.errorResult(err)
	}

	var res Result
	if created {
		res.reply(fmt.Sprintf("Created %s for %s.", cls.Name, setup.Year.Name))
	} else {
		res.reply(fmt.Sprintf("%s already exists for %s.", cls.Name, setup.Year.Name))
	}

	if len(streams) > 0 {
		buckets := s.resolver.AddStreams(ctx, sess, cls, streams)
		if len(buckets.Added) > 0 {
			res.reply("Added streams: " + joinNames(buckets.Added) + ".")
		}
		if len(buckets.Existed) > 0 {
			res.reply("Already existed: " + joinNames(buckets.Existed) + ".")
		}
		if len(buckets.Failed) > 0 {
			res.reply("Could not add: " + joinNames(buckets.Failed) + ". Please try those again.")
		}
	}

	if names, err := s.resolver.StreamNames(ctx, sess, cls.ID); err == nil && len(names) > 0 {
		res.reply(fmt.Sprintf("%s now has streams: %s.", cls.Name, joinNames(names)))
	}

	res.Delta.clear(SlotLevel, SlotStream)
	return res
}

func (s *Service) handleListClasses(ctx context.Context, utt Utterance) Result {
	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	classes, err := s.client.SearchClasses(ctx, utt.Session, admin.ClassQuery{YearID: setup.Year.ID})
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing classes"))
	}
	if len(classes) == 0 {
		return Result{Replies: []string{fmt.Sprintf("No classes yet for %s. Try 'create grade 7'.", setup.Year.Name)}}
	}

	names := make([]string, 0, len(classes))
	for _, cls := range classes {
		names = append(names, cls.Name)
	}
	return Result{Replies: []string{
		fmt.Sprintf("Classes for %s: %s.", setup.Year.Name, joinNames(names)),
	}}
}

func (s *Service) handleListEmptyClasses(ctx context.Context, utt Utterance) Result {
	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	classes, err := s.client.SearchClasses(ctx, utt.Session, admin.ClassQuery{YearID: setup.Year.ID, Empty: true})
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing empty classes"))
	}
	if len(classes) == 0 {
		return Result{Replies: []string{"Every class has students enrolled. Nice."}}
	}

	names := make([]string, 0, len(classes))
	for _, cls := range classes {
		names = append(names, cls.Name)
	}
	return Result{Replies: []string{"Classes with no students: " + joinNames(names) + "."}}
}

func (s *Service) handleListStreams(ctx context.Context, utt Utterance) Result {
	level, _ := classRef(utt)
	if level == "" {
		return Result{Replies: []string{"Which class? For example: 'list streams of grade 8'."}}
	}

	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	cls, err := s.resolver.FindClass(ctx, utt.Session, level, setup.Year.ID)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return Result{Replies: []string{fmt.Sprintf("I don't know %s for %s.", level, setup.Year.Name)}}
		}
		return s.errorResult(err)
	}

	names, err := s.resolver.StreamNames(ctx, utt.Session, cls.ID)
	if err != nil {
		return s.errorResult(err)
	}
	if len(names) == 0 {
		return Result{Replies: []string{fmt.Sprintf("%s has no streams yet.", cls.Name)}}
	}
	return Result{Replies: []string{fmt.Sprintf("%s streams: %s.", cls.Name, joinNames(names))}}
}

func (s *Service) handleDeleteClass(ctx context.Context, utt Utterance) Result {
	level, _ := classRef(utt)
	if level == "" {
		return Result{Replies: []string{"Which class should I delete?"}}
	}

	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	cls, err := s.resolver.FindClass(ctx, utt.Session, level, setup.Year.ID)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return Result{Replies: []string{fmt.Sprintf("There is no %s to delete.", level)}}
		}
		return s.errorResult(err)
	}

	if err := s.client.DeleteClass(ctx, utt.Session, cls.ID); err != nil {
		return s.errorResult(errors.Wrap(err, "deleting class"))
	}
	return Result{Replies: []string{fmt.Sprintf("Deleted %s.", cls.Name)}}
}

func (s *Service) handleRenameClass(ctx context.Context, utt Utterance) Result {
	level, _ := classRef(utt)
	newName := NormalizeClassName(utt.Entity(EntityName))
	if level == "" || newName == "" {
		return Result{Replies: []string{
			"Tell me the class and its new name, e.g. 'rename class 8 to grade 8'.",
		}}
	}

	setup, stop := s.requireSetup(ctx, utt.Session)
	if stop != nil {
		return *stop
	}

	cls, err := s.resolver.FindClass(ctx, utt.Session, level, setup.Year.ID)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return Result{Replies: []string{fmt.Sprintf("I don't know %s for %s.", level, setup.Year.Name)}}
		}
		return s.errorResult(err)
	}

	renamed, err := s.client.RenameClass(ctx, utt.Session, cls.ID, newName)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "renaming class"))
	}
	return Result{Replies: []string{fmt.Sprintf("Renamed %s to %s.", strings.TrimSpace(cls.Name), renamed.Name)}}
}
