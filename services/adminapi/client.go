package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	stdpath "path"
	"strconv"

	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
)

// client talks to the administrative REST API over HTTP with a fixed
// per-call timeout, forwarding the conversation's bearer token and
// school id on every request. HTTP outcomes are translated into the
// admin error variants; callers never see a status code.
type client struct {
	base  *url.URL
	httpc *http.Client
}

var _ admin.Client = (*client)(nil)

func NewClient(conf *core.Config) (admin.Client, error) {
	base, err := url.Parse(conf.AdminAPI.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing admin API base URL")
	}
	return &client{
		base:  base,
		httpc: &http.Client{Timeout: conf.AdminAPI.Timeout},
	}, nil
}

// apiError is the administrative API's rejection payload.
type apiError struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors"`
}

func (c *client) do(ctx context.Context, sess admin.Session, method, path string, query url.Values, body, out interface{}) error {
	u := *c.base
	u.Path = stdpath.Join(u.Path, path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), &buf)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("X-School-ID", sess.SchoolID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		// timeouts included: transport failure, not "does not exist"
		return errors.WithMessage(admin.ErrUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		if out == nil {
			return nil
		}
		return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding response")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		flds := make([]core.FieldError, 0, len(apiErr.Errors))
		for field, msg := range apiErr.Errors {
			flds = append(flds, core.FieldError{Field: field, Error: msg})
		}
		return core.NewValidationError(errors.New(apiErr.Detail), flds...)
	case http.StatusUnauthorized, http.StatusForbidden:
		return admin.ErrNotAuthorized
	case http.StatusNotFound:
		return admin.ErrNotFound
	case http.StatusConflict:
		return admin.ErrConflict
	default:
		return errors.WithMessage(admin.ErrUnavailable, resp.Status)
	}
}

func (c *client) CurrentSetup(ctx context.Context, sess admin.Session) (admin.Setup, error) {
	var setup admin.Setup
	err := c.do(ctx, sess, http.MethodGet, "/academics/setup", nil, nil, &setup)
	return setup, err
}

func (c *client) ListYears(ctx context.Context, sess admin.Session) ([]admin.Year, error) {
	var years []admin.Year
	err := c.do(ctx, sess, http.MethodGet, "/academics/years", nil, nil, &years)
	return years, err
}

func (c *client) CreateYear(ctx context.Context, sess admin.Session, ny admin.NewYear) (admin.Year, error) {
	var year admin.Year
	err := c.do(ctx, sess, http.MethodPost, "/academics/years", nil, ny, &year)
	return year, err
}

func (c *client) ActivateYear(ctx context.Context, sess admin.Session, yearID int) (admin.Year, error) {
	var year admin.Year
	err := c.do(ctx, sess, http.MethodPost, fmt.Sprintf("/academics/years/%d/activate", yearID), nil, nil, &year)
	return year, err
}

func (c *client) ListTerms(ctx context.Context, sess admin.Session, yearID int) ([]admin.Term, error) {
	q := url.Values{"academic_year_id": {strconv.Itoa(yearID)}}
	var terms []admin.Term
	err := c.do(ctx, sess, http.MethodGet, "/academics/terms", q, nil, &terms)
	return terms, err
}

func (c *client) CreateTerm(ctx context.Context, sess admin.Session, nt admin.NewTerm) (admin.Term, error) {
	var term admin.Term
	err := c.do(ctx, sess, http.MethodPost, "/academics/terms", nil, nt, &term)
	return term, err
}

func (c *client) ActivateTerm(ctx context.Context, sess admin.Session, termID int) (admin.Term, error) {
	var term admin.Term
	err := c.do(ctx, sess, http.MethodPost, fmt.Sprintf("/academics/terms/%d/activate", termID), nil, nil, &term)
	return term, err
}

func (c *client) SearchClasses(ctx context.Context, sess admin.Session, query admin.ClassQuery) ([]admin.Class, error) {
	q := make(url.Values)
	if query.Search != "" {
		q.Set("search", query.Search)
	}
	if query.Level != "" {
		q.Set("level", query.Level)
	}
	if query.YearID != 0 {
		q.Set("academic_year_id", strconv.Itoa(query.YearID))
	}
	if query.Empty {
		q.Set("empty", "true")
	}
	var classes []admin.Class
	err := c.do(ctx, sess, http.MethodGet, "/classes", q, nil, &classes)
	return classes, err
}

func (c *client) CreateClass(ctx context.Context, sess admin.Session, nc admin.NewClass) (admin.Class, error) {
	var cls admin.Class
	err := c.do(ctx, sess, http.MethodPost, "/classes", nil, nc, &cls)
	return cls, err
}

func (c *client) RenameClass(ctx context.Context, sess admin.Session, classID int, name string) (admin.Class, error) {
	var cls admin.Class
	body := map[string]string{"name": name}
	err := c.do(ctx, sess, http.MethodPatch, fmt.Sprintf("/classes/%d", classID), nil, body, &cls)
	return cls, err
}

func (c *client) DeleteClass(ctx context.Context, sess admin.Session, classID int) error {
	return c.do(ctx, sess, http.MethodDelete, fmt.Sprintf("/classes/%d", classID), nil, nil, nil)
}

func (c *client) ListStreams(ctx context.Context, sess admin.Session, classID int) ([]admin.Stream, error) {
	var streams []admin.Stream
	err := c.do(ctx, sess, http.MethodGet, fmt.Sprintf("/classes/%d/streams", classID), nil, nil, &streams)
	return streams, err
}

func (c *client) AddStream(ctx context.Context, sess admin.Session, classID int, name string) (admin.Stream, error) {
	var stream admin.Stream
	body := map[string]string{"name": name}
	err := c.do(ctx, sess, http.MethodPost, fmt.Sprintf("/classes/%d/streams", classID), nil, body, &stream)
	return stream, err
}

func (c *client) SearchStudents(ctx context.Context, sess admin.Session, query admin.StudentQuery) ([]admin.Student, error) {
	q := make(url.Values)
	if query.Search != "" {
		q.Set("search", query.Search)
	}
	if query.ClassID != 0 {
		q.Set("class_id", strconv.Itoa(query.ClassID))
	}
	if query.Unassigned {
		q.Set("unassigned", "true")
	}
	var students []admin.Student
	err := c.do(ctx, sess, http.MethodGet, "/students", q, nil, &students)
	return students, err
}

func (c *client) CreateStudent(ctx context.Context, sess admin.Session, ns admin.NewStudent) (admin.Student, error) {
	var student admin.Student
	err := c.do(ctx, sess, http.MethodPost, "/students", nil, ns, &student)
	return student, err
}

func (c *client) CreateEnrollment(ctx context.Context, sess admin.Session, ne admin.NewEnrollment) (admin.Enrollment, error) {
	var enr admin.Enrollment
	err := c.do(ctx, sess, http.MethodPost, "/enrollments", nil, ne, &enr)
	return enr, err
}

func (c *client) StudentGuardians(ctx context.Context, sess admin.Session, studentID int) ([]admin.Guardian, error) {
	var guardians []admin.Guardian
	err := c.do(ctx, sess, http.MethodGet, fmt.Sprintf("/students/%d/guardians", studentID), nil, nil, &guardians)
	return guardians, err
}

func (c *client) AddGuardian(ctx context.Context, sess admin.Session, ng admin.NewGuardian) (admin.Guardian, error) {
	var guardian admin.Guardian
	err := c.do(ctx, sess, http.MethodPost, fmt.Sprintf("/students/%d/guardians", ng.StudentID), nil, ng, &guardian)
	return guardian, err
}

func (c *client) UpdateGuardian(ctx context.Context, sess admin.Session, guardianID int, gu admin.GuardianUpdate) (admin.Guardian, error) {
	var guardian admin.Guardian
	err := c.do(ctx, sess, http.MethodPatch, fmt.Sprintf("/guardians/%d", guardianID), nil, gu, &guardian)
	return guardian, err
}
