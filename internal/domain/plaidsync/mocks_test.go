package plaidsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"billpay/internal/domain/account"
	"billpay/internal/domain/bill"
	"billpay/internal/domain/income"
	"billpay/internal/domain/transaction"
	"billpay/internal/domain/user"
	"billpay/internal/infrastructure/plaid"
	"billpay/internal/shared/config"
)

// MockPlaidClient implements plaid.ClientInterface
type MockPlaidClient struct {
	LinkTokenCreateFunc          func(ctx context.Context, req plaid.LinkTokenCreateRequest) (*plaid.LinkTokenCreateResponse, error)
	ItemPublicTokenExchangeFunc  func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	AccountsGetFunc              func(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error)
	TransactionsGetFunc          func(ctx context.Context, accessToken, startDate, endDate string, count int) (*plaid.TransactionsGetResponse, error)
	LiabilitiesGetFunc           func(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error)
	SandboxPublicTokenCreateFunc func(ctx context.Context, institutionID string, products []string) (string, error)
}

func (m *MockPlaidClient) LinkTokenCreate(ctx context.Context, req plaid.LinkTokenCreateRequest) (*plaid.LinkTokenCreateResponse, error) {
	if m.LinkTokenCreateFunc != nil {
		return m.LinkTokenCreateFunc(ctx, req)
	}
	return &plaid.LinkTokenCreateResponse{LinkToken: "link-sandbox-token"}, nil
}

func (m *MockPlaidClient) ItemPublicTokenExchange(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	if m.ItemPublicTokenExchangeFunc != nil {
		return m.ItemPublicTokenExchangeFunc(ctx, publicToken)
	}
	return &plaid.ExchangeResponse{AccessToken: "access-token", ItemID: "item-1"}, nil
}

func (m *MockPlaidClient) AccountsGet(ctx context.Context, accessToken string) (*plaid.AccountsGetResponse, error) {
	if m.AccountsGetFunc != nil {
		return m.AccountsGetFunc(ctx, accessToken)
	}
	return &plaid.AccountsGetResponse{}, nil
}

func (m *MockPlaidClient) TransactionsGet(ctx context.Context, accessToken, startDate, endDate string, count int) (*plaid.TransactionsGetResponse, error) {
	if m.TransactionsGetFunc != nil {
		return m.TransactionsGetFunc(ctx, accessToken, startDate, endDate, count)
	}
	return &plaid.TransactionsGetResponse{}, nil
}

func (m *MockPlaidClient) LiabilitiesGet(ctx context.Context, accessToken string) (*plaid.LiabilitiesGetResponse, error) {
	if m.LiabilitiesGetFunc != nil {
		return m.LiabilitiesGetFunc(ctx, accessToken)
	}
	return &plaid.LiabilitiesGetResponse{}, nil
}

func (m *MockPlaidClient) SandboxPublicTokenCreate(ctx context.Context, institutionID string, products []string) (string, error) {
	if m.SandboxPublicTokenCreateFunc != nil {
		return m.SandboxPublicTokenCreateFunc(ctx, institutionID, products)
	}
	return "public-sandbox-token", nil
}

// memUserRepo is an in-memory user.Repository. The sibling repos are wired in
// by newTestEnv so Unlink(reset=true) can delete rows the way the SQL
// implementation does: all accounts and transactions, only provenance-tagged
// bills and incomes.
type memUserRepo struct {
	users map[int64]*user.User

	accounts     *memAccountRepo
	transactions *memTransactionRepo
	bills        *memBillRepo
	incomes      *memIncomeRepo
}

func newMemUserRepo(users ...*user.User) *memUserRepo {
	r := &memUserRepo{users: make(map[int64]*user.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(ctx context.Context, params user.CreateParams) (*user.User, error) {
	return nil, errors.New("not implemented")
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) GetByItemID(ctx context.Context, itemID string) (*user.User, error) {
	for _, u := range r.users {
		if u.ItemID != nil && *u.ItemID == itemID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) SetLink(ctx context.Context, userID int64, sealedToken, itemID string) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	if sealedToken == "" || itemID == "" {
		return user.ErrInconsistentLink
	}
	u.AccessToken = &sealedToken
	u.ItemID = &itemID
	u.LinkState = user.LinkStateLinked
	return nil
}

func (r *memUserRepo) SetLinkState(ctx context.Context, userID int64, state user.LinkState) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.LinkState = state
	return nil
}

func (r *memUserRepo) TouchLastSynced(ctx context.Context, userID int64) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	now := time.Now()
	u.LastSyncedAt = &now
	return nil
}

func (r *memUserRepo) Unlink(ctx context.Context, userID int64, reset bool) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	if reset {
		for id, tx := range r.transactions.transactions {
			if tx.UserID == userID {
				delete(r.transactions.transactions, id)
			}
		}
		for id, acc := range r.accounts.accounts {
			if acc.UserID == userID {
				delete(r.accounts.accounts, id)
			}
		}
		for id, b := range r.bills.bills {
			if b.UserID == userID && b.ProvenanceID != nil {
				delete(r.bills.bills, id)
			}
		}
		for id, in := range r.incomes.incomes {
			if in.UserID == userID && in.ProvenanceID != nil {
				delete(r.incomes.incomes, id)
			}
		}
	}
	u.AccessToken = nil
	u.ItemID = nil
	u.LinkState = user.LinkStateNone
	u.LastSyncedAt = nil
	return nil
}

// memAccountRepo is an in-memory account.Repository
type memAccountRepo struct {
	accounts map[string]*account.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*account.Account)}
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	copied := *acc
	return &copied, nil
}

func (r *memAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	var out []*account.Account
	for _, acc := range r.accounts {
		if acc.UserID == userID {
			copied := *acc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAccountRepo) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	acc := &account.Account{
		ID:               params.ID,
		UserID:           params.UserID,
		Name:             params.Name,
		OfficialName:     params.OfficialName,
		AccountType:      params.AccountType,
		Subtype:          params.Subtype,
		Mask:             params.Mask,
		CurrentBalance:   params.CurrentBalance,
		AvailableBalance: params.AvailableBalance,
		Currency:         params.Currency,
		LastSynced:       time.Now(),
	}
	r.accounts[params.ID] = acc
	copied := *acc
	return &copied, nil
}

func (r *memAccountRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := r.accounts[id]
	return ok, nil
}

// memTransactionRepo is an in-memory transaction.Repository
type memTransactionRepo struct {
	transactions map[string]*transaction.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{transactions: make(map[string]*transaction.Transaction)}
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	tx, ok := r.transactions[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (r *memTransactionRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			copied := *tx
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == userID && !tx.Date.Before(since) {
			copied := *tx
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) Upsert(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	existing := r.transactions[params.ID]
	tx := &transaction.Transaction{
		ID:             params.ID,
		UserID:         params.UserID,
		AccountID:      params.AccountID,
		Name:           params.Name,
		MerchantName:   params.MerchantName,
		Amount:         params.Amount,
		Date:           params.Date,
		Pending:        params.Pending,
		Category:       params.Category,
		PaymentChannel: params.PaymentChannel,
	}
	if existing != nil {
		tx.IsRecurring = existing.IsRecurring
	}
	r.transactions[params.ID] = tx
	copied := *tx
	return &copied, nil
}

func (r *memTransactionRepo) MarkRecurring(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if tx, ok := r.transactions[id]; ok {
			tx.IsRecurring = true
		}
	}
	return nil
}

func (r *memTransactionRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			count++
		}
	}
	return count, nil
}

// memBillRepo is an in-memory bill.Repository
type memBillRepo struct {
	bills  map[int64]*bill.Bill
	nextID int64
}

func newMemBillRepo() *memBillRepo {
	return &memBillRepo{bills: make(map[int64]*bill.Bill), nextID: 1}
}

func (r *memBillRepo) Create(ctx context.Context, params bill.CreateParams) (*bill.Bill, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = bill.StatusUnpaid
	}
	frequency := params.Frequency
	if frequency == "" {
		frequency = "monthly"
	}
	b := &bill.Bill{
		ID:           r.nextID,
		UserID:       params.UserID,
		ProvenanceID: params.ProvenanceID,
		Name:         params.Name,
		Amount:       params.Amount,
		DueDate:      params.DueDate,
		Frequency:    frequency,
		Category:     params.Category,
		Status:       status,
		Autopay:      params.Autopay,
		Notes:        params.Notes,
	}
	r.bills[r.nextID] = b
	r.nextID++
	copied := *b
	return &copied, nil
}

func (r *memBillRepo) GetByID(ctx context.Context, id int64) (*bill.Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return nil, bill.ErrBillNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *memBillRepo) ListByUserID(ctx context.Context, userID int64) ([]*bill.Bill, error) {
	var out []*bill.Bill
	for _, b := range r.bills {
		if b.UserID == userID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memBillRepo) GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*bill.Bill, error) {
	for _, b := range r.bills {
		if b.UserID == userID && b.ProvenanceID != nil && *b.ProvenanceID == provenanceID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, bill.ErrBillNotFound
}

func (r *memBillRepo) FindByName(ctx context.Context, userID int64, name string) (*bill.Bill, error) {
	for _, b := range r.bills {
		if b.UserID == userID && strings.EqualFold(b.Name, name) {
			copied := *b
			return &copied, nil
		}
	}
	return nil, bill.ErrBillNotFound
}

func (r *memBillRepo) Update(ctx context.Context, id int64, params bill.UpdateParams) (*bill.Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return nil, bill.ErrBillNotFound
	}
	if params.Name != nil {
		b.Name = *params.Name
	}
	if params.Amount != nil {
		b.Amount = *params.Amount
	}
	if params.DueDate != nil {
		b.DueDate = *params.DueDate
	}
	if params.Status != nil {
		b.Status = *params.Status
	}
	if params.Autopay != nil {
		b.Autopay = *params.Autopay
	}
	if params.Notes != nil {
		b.Notes = params.Notes
	}
	copied := *b
	return &copied, nil
}

func (r *memBillRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.bills[id]; !ok {
		return bill.ErrBillNotFound
	}
	delete(r.bills, id)
	return nil
}

// memIncomeRepo is an in-memory income.Repository
type memIncomeRepo struct {
	incomes map[int64]*income.Income
	nextID  int64
}

func newMemIncomeRepo() *memIncomeRepo {
	return &memIncomeRepo{incomes: make(map[int64]*income.Income), nextID: 1}
}

func (r *memIncomeRepo) Create(ctx context.Context, params income.CreateParams) (*income.Income, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	in := &income.Income{
		ID:           r.nextID,
		UserID:       params.UserID,
		ProvenanceID: params.ProvenanceID,
		Source:       params.Source,
		GrossAmount:  params.GrossAmount,
		NetAmount:    params.NetAmount,
		Frequency:    params.Frequency,
		Date:         params.Date,
		Notes:        params.Notes,
	}
	r.incomes[r.nextID] = in
	r.nextID++
	copied := *in
	return &copied, nil
}

func (r *memIncomeRepo) GetByID(ctx context.Context, id int64) (*income.Income, error) {
	in, ok := r.incomes[id]
	if !ok {
		return nil, income.ErrIncomeNotFound
	}
	copied := *in
	return &copied, nil
}

func (r *memIncomeRepo) ListByUserID(ctx context.Context, userID int64) ([]*income.Income, error) {
	var out []*income.Income
	for _, in := range r.incomes {
		if in.UserID == userID {
			copied := *in
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memIncomeRepo) GetByProvenanceID(ctx context.Context, userID int64, provenanceID string) (*income.Income, error) {
	for _, in := range r.incomes {
		if in.UserID == userID && in.ProvenanceID != nil && *in.ProvenanceID == provenanceID {
			copied := *in
			return &copied, nil
		}
	}
	return nil, income.ErrIncomeNotFound
}

func (r *memIncomeRepo) Update(ctx context.Context, id int64, params income.UpdateParams) (*income.Income, error) {
	in, ok := r.incomes[id]
	if !ok {
		return nil, income.ErrIncomeNotFound
	}
	if params.Source != nil {
		in.Source = *params.Source
	}
	if params.GrossAmount != nil {
		in.GrossAmount = *params.GrossAmount
	}
	if params.NetAmount != nil {
		in.NetAmount = params.NetAmount
	}
	if params.Frequency != nil {
		in.Frequency = *params.Frequency
	}
	if params.Date != nil {
		in.Date = *params.Date
	}
	if params.Notes != nil {
		in.Notes = params.Notes
	}
	copied := *in
	return &copied, nil
}

func (r *memIncomeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.incomes[id]; !ok {
		return income.ErrIncomeNotFound
	}
	delete(r.incomes, id)
	return nil
}

// memLocks is an in-memory Locker
type memLocks struct {
	mu   sync.Mutex
	held map[int64]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[int64]bool)}
}

func (l *memLocks) Acquire(ctx context.Context, userID int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[userID] {
		return nil, false, nil
	}
	l.held[userID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[userID] = false
	}, true, nil
}

// stubVault seals with a reversible prefix; failDecrypt simulates a key change.
type stubVault struct {
	failDecrypt bool
}

func (v *stubVault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return "sealed:" + plaintext, nil
}

func (v *stubVault) Decrypt(ciphertext string) (string, error) {
	if v.failDecrypt {
		return "", errors.New("decryption failed")
	}
	if ciphertext == "" {
		return "", nil
	}
	return strings.TrimPrefix(ciphertext, "sealed:"), nil
}

// stubNotifier records notification calls.
type stubNotifier struct {
	syncCompleted  int
	relinkRequired int
}

func (n *stubNotifier) SyncCompleted(ctx context.Context, userID int64, summary *SyncSummary) {
	n.syncCompleted++
}

func (n *stubNotifier) RelinkRequired(ctx context.Context, userID int64) {
	n.relinkRequired++
}

// testEnv bundles a Service with its fakes for assertions.
type testEnv struct {
	service      *Service
	client       *MockPlaidClient
	users        *memUserRepo
	accounts     *memAccountRepo
	transactions *memTransactionRepo
	bills        *memBillRepo
	incomes      *memIncomeRepo
	locks        *memLocks
	vault        *stubVault
	notifier     *stubNotifier
}

func sandboxConfig() config.PlaidConfig {
	return config.PlaidConfig{
		Enabled:               true,
		Environment:           config.PlaidEnvSandbox,
		ClientID:              "client-test",
		Secret:                "secret-test",
		Products:              []string{"transactions", "auth", "liabilities", "income"},
		CountryCodes:          []string{"US"},
		AllowAdvancedProducts: true,
		TransactionWindowDays: 30,
	}
}

func newTestEnv(cfg config.PlaidConfig, users ...*user.User) *testEnv {
	env := &testEnv{
		client:       &MockPlaidClient{},
		users:        newMemUserRepo(users...),
		accounts:     newMemAccountRepo(),
		transactions: newMemTransactionRepo(),
		bills:        newMemBillRepo(),
		incomes:      newMemIncomeRepo(),
		locks:        newMemLocks(),
		vault:        &stubVault{},
		notifier:     &stubNotifier{},
	}
	env.users.accounts = env.accounts
	env.users.transactions = env.transactions
	env.users.bills = env.bills
	env.users.incomes = env.incomes
	env.service = NewService(cfg, env.client, env.vault, env.locks,
		env.users, env.accounts, env.transactions, env.bills, env.incomes, env.notifier)
	return env
}

func linkedUser(id int64) *user.User {
	sealed := "sealed:access-token"
	item := "item-1"
	return &user.User{
		ID:          id,
		Email:       "user@example.com",
		AccessToken: &sealed,
		ItemID:      &item,
		LinkState:   user.LinkStateLinked,
	}
}

func accountUpsert(id string, userID int64) account.UpsertParams {
	return account.UpsertParams{
		ID:          id,
		UserID:      userID,
		Name:        "Account " + id,
		AccountType: "depository",
		Currency:    "USD",
	}
}

func unlinkedUser(id int64) *user.User {
	return &user.User{
		ID:        id,
		Email:     "user@example.com",
		LinkState: user.LinkStateNone,
	}
}
