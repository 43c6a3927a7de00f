// Package memory keeps every aggregate in process memory behind one mutex.
// It backs tests and the development mode that runs without a database.
package memory

import (
	"sync"

	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/credit"
	"hive_fund/internal/domain/exit"
	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
)

// Store holds the state shared by the repositories it hands out. A single
// lock makes cross-aggregate changes, such as pool plus loan plus receipt,
// atomic.
type Store struct {
	mu sync.Mutex

	circles  map[uuid.UUID]*circle.Circle
	members  map[uuid.UUID]*circle.Member
	cycles   map[uuid.UUID]*circle.Cycle
	entries  map[uuid.UUID]*circle.ScheduleEntry
	requests map[uuid.UUID]*exit.Request
	votes    map[uuid.UUID]*exit.Vote
	loans    map[uuid.UUID]*loan.Loan
	txs      []*transaction.Transaction
	pool     ledger.Pool
	scores   map[uuid.UUID]int
	history  []*credit.HistoryEntry
}

func NewStore() *Store {
	return &Store{
		circles:  make(map[uuid.UUID]*circle.Circle),
		members:  make(map[uuid.UUID]*circle.Member),
		cycles:   make(map[uuid.UUID]*circle.Cycle),
		entries:  make(map[uuid.UUID]*circle.ScheduleEntry),
		requests: make(map[uuid.UUID]*exit.Request),
		votes:    make(map[uuid.UUID]*exit.Vote),
		loans:    make(map[uuid.UUID]*loan.Loan),
		scores:   make(map[uuid.UUID]int),
	}
}

func (s *Store) Circles() *CircleRepository           { return &CircleRepository{s: s} }
func (s *Store) Exits() *ExitRepository               { return &ExitRepository{s: s} }
func (s *Store) Loans() *LoanRepository               { return &LoanRepository{s: s} }
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s: s} }
func (s *Store) Ledger() *Ledger                      { return &Ledger{s: s} }
func (s *Store) Credit() *CreditStore                 { return &CreditStore{s: s} }

// SetScore overwrites a reputation score without recording history.
func (s *Store) SetScore(userID uuid.UUID, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[userID] = score
}

func copyCircle(c *circle.Circle) *circle.Circle {
	cp := *c
	return &cp
}

func copyMember(m *circle.Member) *circle.Member {
	cp := *m
	return &cp
}

func copyCycle(c *circle.Cycle) *circle.Cycle {
	cp := *c
	return &cp
}

func copyEntry(e *circle.ScheduleEntry) *circle.ScheduleEntry {
	cp := *e
	return &cp
}

func copyRequest(r *exit.Request) *exit.Request {
	cp := *r
	return &cp
}

func copyLoan(l *loan.Loan) *loan.Loan {
	cp := *l
	return &cp
}
