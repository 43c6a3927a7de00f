package app

import (
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/credit"
	"hive_fund/internal/domain/exit"
	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/notification"
	"hive_fund/internal/domain/transaction"

	"github.com/sirupsen/logrus"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Circles      circle.Repository
	Exits        exit.Repository
	Loans        loan.Repository
	Transactions transaction.Repository
	Ledger       ledger.Ledger
	Credit       credit.Store
	Notifier     notification.Notifier
	Rewards      Rewards
	OperatorID   int64
}

// App is the transport-agnostic surface of the service.
type App struct {
	Circles       *CircleService
	Exits         *ExitService
	Contributions *ContributionService
	Loans         *LoanService
	Operator      *OperatorService
}

func New(d Deps, logger *logrus.Entry, opts ...Option) *App {
	circles := NewCircleService(d.Circles, d.Notifier, logger, opts...)
	contributions := NewContributionService(d.Circles, d.Ledger, d.Transactions, d.Credit, d.Notifier, d.Rewards, logger, opts...)
	loans := NewLoanService(d.Loans, d.Ledger, d.Credit, d.Notifier, logger, opts...)
	return &App{
		Circles:       circles,
		Exits:         NewExitService(d.Circles, d.Exits, d.Notifier, logger, opts...),
		Contributions: contributions,
		Loans:         loans,
		Operator:      NewOperatorService(circles, contributions, loans, d.OperatorID),
	}
}
