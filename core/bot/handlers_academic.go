package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
)

var (
	termNumberRegex = regexp.MustCompile(`(?i)\bterm\s*(\d+)\b`)
	yearNameRegex   = regexp.MustCompile(`\b(\d{4}(?:\s*[-/]\s*\d{2,4})?)\b`)
)

func (s *Service) handleCheckAcademicSetup(ctx context.Context, utt Utterance) Result {
	setup, err := s.resolver.CurrentSetup(ctx, utt.Session)
	if err != nil {
		return s.errorResult(err)
	}

	if setup.Complete() {
		return Result{Replies: []string{fmt.Sprintf(
			"All set: academic year %s is active and the current term is %s.",
			setup.Year.Name, setup.Term.Name,
		)}}
	}

	lines := []string{"Your academic setup is incomplete:"}
	if setup.Year == nil || !setup.Year.Active {
		lines = append(lines, "- no active academic year ('create year 2026', then 'activate year 2026')")
	}
	if setup.Term == nil || !setup.Term.Active {
		lines = append(lines, "- no current term ('create term 1', then 'activate term 1')")
	}
	return Result{Replies: []string{strings.Join(lines, "\n")}}
}

func (s *Service) handleGetCurrentTerm(ctx context.Context, utt Utterance) Result {
	setup, err := s.resolver.CurrentSetup(ctx, utt.Session)
	if err != nil {
		return s.errorResult(err)
	}
	if setup.Term == nil || !setup.Term.Active {
		return Result{Replies: []string{"No current term is set. Try 'activate term 1'."}}
	}
	return Result{Replies: []string{fmt.Sprintf("The current term is %s.", setup.Term.Name)}}
}

// yearRef recovers the academic year name from the entity or the text
// ("2026", "2026/27").
func yearRef(utt Utterance) string {
	if name := core.CleanString(utt.Entity(EntityYearName)); name != "" {
		return name
	}
	if m := yearNameRegex.FindStringSubmatch(utt.Text); m != nil {
		return strings.Join(strings.Fields(m[1]), "")
	}
	return ""
}

func (s *Service) handleCreateYear(ctx context.Context, utt Utterance) Result {
	name := yearRef(utt)
	if name == "" {
		return Result{Replies: []string{"Which academic year should I create? For example: 'create year 2026'."}}
	}

	year, err := s.client.CreateYear(ctx, utt.Session, admin.NewYear{Name: name})
	if err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			return Result{Replies: []string{fmt.Sprintf("Academic year %s already exists.", name)}}
		}
		return s.errorResult(errors.Wrap(err, "creating academic year"))
	}
	return Result{Replies: []string{fmt.Sprintf(
		"Created academic year %s. Say 'activate year %s' to make it active.",
		year.Name, year.Name,
	)}}
}

func (s *Service) handleActivateYear(ctx context.Context, utt Utterance) Result {
	name := yearRef(utt)
	if name == "" {
		return Result{Replies: []string{"Which academic year should I activate? For example: 'activate year 2026'."}}
	}

	years, err := s.client.ListYears(ctx, utt.Session)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing academic years"))
	}
	for _, year := range years {
		if strings.EqualFold(year.Name, name) {
			activated, err := s.client.ActivateYear(ctx, utt.Session, year.ID)
			if err != nil {
				return s.errorResult(errors.Wrap(err, "activating academic year"))
			}
			return Result{Replies: []string{fmt.Sprintf(
				"Academic year %s is now active. Next: create a term ('create term 1') and activate it.",
				activated.Name,
			)}}
		}
	}
	return Result{Replies: []string{fmt.Sprintf(
		"I don't see academic year %s. Create it first with 'create year %s'.", name, name,
	)}}
}

func (s *Service) handleListYears(ctx context.Context, utt Utterance) Result {
	years, err := s.client.ListYears(ctx, utt.Session)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing academic years"))
	}
	if len(years) == 0 {
		return Result{Replies: []string{"No academic years exist yet. Say 'create year 2026' to start."}}
	}

	lines := make([]string, 0, len(years)+1)
	lines = append(lines, "Academic years:")
	for _, year := range years {
		line := "- " + year.Name
		if year.Active {
			line += " (active)"
		}
		lines = append(lines, line)
	}
	return Result{Replies: []string{strings.Join(lines, "\n")}}
}

// termRef recovers the term name from the entity or the text.
func termRef(utt Utterance) string {
	if name := core.CleanString(utt.Entity(EntityTermName)); name != "" {
		return title(name)
	}
	if m := termNumberRegex.FindStringSubmatch(utt.Text); m != nil {
		return "Term " + m[1]
	}
	return ""
}

func (s *Service) handleCreateTerm(ctx context.Context, utt Utterance) Result {
	name := termRef(utt)
	if name == "" {
		return Result{Replies: []string{"Which term should I create? For example: 'create term 2'."}}
	}

	setup, err := s.resolver.CurrentSetup(ctx, utt.Session)
	if err != nil {
		return s.errorResult(err)
	}
	if setup.Year == nil || !setup.Year.Active {
		return Result{Replies: []string{"There's no active academic year yet; say 'create year 2026' first."}}
	}

	term, err := s.client.CreateTerm(ctx, utt.Session, admin.NewTerm{Name: name, YearID: setup.Year.ID})
	if err != nil {
		if errors.Cause(err) == admin.ErrConflict {
			return Result{Replies: []string{fmt.Sprintf("%s already exists for %s.", name, setup.Year.Name)}}
		}
		return s.errorResult(errors.Wrap(err, "creating term"))
	}
	return Result{Replies: []string{fmt.Sprintf(
		"Created %s for %s. Say 'activate %s' to make it current.",
		term.Name, setup.Year.Name, strings.ToLower(term.Name),
	)}}
}

func (s *Service) handleActivateTerm(ctx context.Context, utt Utterance) Result {
	name := termRef(utt)
	if name == "" {
		return Result{Replies: []string{"Which term should I activate? For example: 'activate term 1'."}}
	}

	setup, err := s.resolver.CurrentSetup(ctx, utt.Session)
	if err != nil {
		return s.errorResult(err)
	}
	if setup.Year == nil || !setup.Year.Active {
		return Result{Replies: []string{"There's no active academic year yet; say 'create year 2026' first."}}
	}

	terms, err := s.client.ListTerms(ctx, utt.Session, setup.Year.ID)
	if err != nil {
		return s.errorResult(errors.Wrap(err, "listing terms"))
	}
	for _, term := range terms {
		if strings.EqualFold(term.Name, name) {
			activated, err := s.client.ActivateTerm(ctx, utt.Session, term.ID)
			if err != nil {
				return s.errorResult(errors.Wrap(err, "activating term"))
			}
			return Result{Replies: []string{fmt.Sprintf("%s is now the current term.", activated.Name)}}
		}
	}
	return Result{Replies: []string{fmt.Sprintf(
		"I don't see %s under %s. Create it first with 'create %s'.",
		name, setup.Year.Name, strings.ToLower(name),
	)}}
}
