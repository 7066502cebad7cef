package admin

import "context"

// Client is the capability surface the interpreter consumes from the
// administrative REST API. Implementations must translate their failure
// modes into the error variants of this package; every method carries
// the conversation's Session for token/tenant propagation.
type Client interface {
	// academic setup
	CurrentSetup(ctx context.Context, sess Session) (Setup, error)
	ListYears(ctx context.Context, sess Session) ([]Year, error)
	CreateYear(ctx context.Context, sess Session, ny NewYear) (Year, error)
	ActivateYear(ctx context.Context, sess Session, yearID int) (Year, error)
	ListTerms(ctx context.Context, sess Session, yearID int) ([]Term, error)
	CreateTerm(ctx context.Context, sess Session, nt NewTerm) (Term, error)
	ActivateTerm(ctx context.Context, sess Session, termID int) (Term, error)

	// classes & streams
	SearchClasses(ctx context.Context, sess Session, q ClassQuery) ([]Class, error)
	CreateClass(ctx context.Context, sess Session, nc NewClass) (Class, error)
	RenameClass(ctx context.Context, sess Session, classID int, name string) (Class, error)
	DeleteClass(ctx context.Context, sess Session, classID int) error
	ListStreams(ctx context.Context, sess Session, classID int) ([]Stream, error)
	AddStream(ctx context.Context, sess Session, classID int, name string) (Stream, error)

	// students & enrollments
	SearchStudents(ctx context.Context, sess Session, q StudentQuery) ([]Student, error)
	CreateStudent(ctx context.Context, sess Session, ns NewStudent) (Student, error)
	CreateEnrollment(ctx context.Context, sess Session, ne NewEnrollment) (Enrollment, error)

	// guardians
	StudentGuardians(ctx context.Context, sess Session, studentID int) ([]Guardian, error)
	AddGuardian(ctx context.Context, sess Session, ng NewGuardian) (Guardian, error)
	UpdateGuardian(ctx context.Context, sess Session, guardianID int, gu GuardianUpdate) (Guardian, error)
}
