package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/kylevidrine/portal/internal/apperr"
	"github.com/kylevidrine/portal/internal/models"
)

// Service encapsulates customer lifecycle rules on top of a Repository.
type Service struct {
	repo  Repository
	newID func() string
}

func NewService(r Repository) *Service {
	return &Service{repo: r, newID: func() string { return uuid.NewString() }}
}

// DeleteResult reports an administrative delete. Email is empty when the
// pre-read failed or the customer did not exist.
type DeleteResult struct {
	Deleted bool
	Email   string
}

// CreateFromWorkspace mints a new customer for a completed Workspace consent.
// There is no merge by email: every consent yields a fresh identity.
func (s *Service) CreateFromWorkspace(ctx context.Context, p models.Profile, creds models.WorkspaceCredentials) (*models.Customer, error) {
	if creds.AccessToken == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "invalid_credentials", "workspace access token is required")
	}
	c := &models.Customer{
		ID:        s.newID(),
		Email:     p.Email,
		Name:      p.Name,
		Picture:   p.Picture,
		Workspace: &creds,
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// CreateStandalone mints a placeholder-profile customer that already carries the
// accounting bundle, so the record is never stored without credentials.
func (s *Service) CreateStandalone(ctx context.Context, creds models.AccountingCredentials) (*models.Customer, error) {
	if err := checkAccounting(creds); err != nil {
		return nil, err
	}
	c := &models.Customer{
		ID:         s.newID(),
		Email:      models.PlaceholderEmail(creds.CompanyID),
		Name:       models.PlaceholderName(creds.CompanyID),
		Accounting: &creds,
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// AttachAccounting writes the full accounting bundle onto an existing customer.
func (s *Service) AttachAccounting(ctx context.Context, id string, creds models.AccountingCredentials) error {
	if err := checkAccounting(creds); err != nil {
		return err
	}
	return classify(s.repo.UpdateAccounting(ctx, id, &creds))
}

func (s *Service) DisconnectWorkspace(ctx context.Context, id string) error {
	return classify(s.repo.ClearWorkspace(ctx, id))
}

func (s *Service) DisconnectAccounting(ctx context.Context, id string) error {
	return classify(s.repo.UpdateAccounting(ctx, id, nil))
}

// DisconnectAccountingByCompany clears the accounting bundle of the customer
// holding companyID. It returns the affected customer id, or "" when no
// customer holds that company (a no-op, not an error).
func (s *Service) DisconnectAccountingByCompany(ctx context.Context, companyID string) (string, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return "", apperr.New(apperr.KindInvalidArgument, "invalid_company_id", "company id is required")
	}
	c, err := s.repo.FindByCompanyID(ctx, companyID)
	if err != nil {
		return "", classify(err)
	}
	if c == nil {
		return "", nil
	}
	if err := s.repo.UpdateAccounting(ctx, c.ID, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			// deleted between the lookup and the update
			return "", nil
		}
		return "", classify(err)
	}
	return c.ID, nil
}

// Get returns (nil, nil) when the customer does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	return c, classify(err)
}

func (s *Service) List(ctx context.Context) ([]*models.Customer, error) {
	list, err := s.repo.List(ctx)
	return list, classify(err)
}

// Latest returns the most recently created customer, or nil when there are none.
func (s *Service) Latest(ctx context.Context) (*models.Customer, error) {
	list, err := s.List(ctx)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	list, err := s.List(ctx)
	return len(list), err
}

// SearchByEmail matches a case-insensitive substring of the email.
func (s *Service) SearchByEmail(ctx context.Context, q string) ([]*models.Customer, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	out := []*models.Customer{}
	for _, c := range list {
		if strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Delete hard-deletes a customer. Deleting an unknown id succeeds with Deleted=false.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	if c, err := s.repo.GetByID(ctx, id); err == nil && c != nil {
		res.Email = c.Email
	}
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return res, classify(err)
	}
	res.Deleted = n > 0
	return res, nil
}

func checkAccounting(creds models.AccountingCredentials) error {
	if creds.AccessToken == "" || creds.CompanyID == "" {
		return apperr.New(apperr.KindInvalidArgument, "invalid_credentials", "accounting access token and company id are required")
	}
	return nil
}

// classify maps repository errors onto the application taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "customer_not_found", "customer not found", err)
	}
	var se *StorageError
	if errors.As(err, &se) {
		return apperr.Wrap(apperr.KindPersistence, "internal_error", se.Error(), nil)
	}
	return apperr.Wrap(apperr.KindPersistence, "internal_error", err.Error(), nil)
}
