package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/truonghoc/backend/apps/api/echo"
	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/grade"
	"github.com/truonghoc/backend/core/improvement"
	"github.com/truonghoc/backend/core/period"
	"github.com/truonghoc/backend/core/subject"
	"github.com/truonghoc/backend/core/user"
	emailsvc "github.com/truonghoc/backend/services/email"
	logsvc "github.com/truonghoc/backend/services/logger"
	"github.com/truonghoc/backend/storage/database"
	sqlxrepos "github.com/truonghoc/backend/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

type improvementParams struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Mailer   core.EmailService
	Repo     improvement.Repository
	Periods  period.Repository
	Subjects subject.Repository
	Users    user.Repository
}

func newImprovementService(p improvementParams) improvement.Service {
	return improvement.NewService(improvement.ServiceDeps{
		Conf:     p.Conf,
		Logger:   p.Logger,
		Mailer:   p.Mailer,
		Repo:     p.Repo,
		Periods:  p.Periods,
		Subjects: p.Subjects,
		Users:    p.Users,
	})
}

type serverParams struct {
	dig.In
	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	UserSvc        user.Service
	SubjectSvc     subject.Service
	PeriodSvc      period.Service
	GradeSvc       grade.Service
	ImprovementSvc improvement.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		SubjectSvc:     p.SubjectSvc,
		PeriodSvc:      p.PeriodSvc,
		GradeSvc:       p.GradeSvc,
		ImprovementSvc: p.ImprovementSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(validator.New))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewSubjectRepository))
	must(c.Provide(sqlxrepos.NewPeriodRepository))
	must(c.Provide(sqlxrepos.NewGradeRepository))
	must(c.Provide(sqlxrepos.NewImprovementRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(subject.NewService))
	must(c.Provide(period.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(newImprovementService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
