package dynamo

import (
	"context"
	"fmt"
	"time"

	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

type userItem struct {
	ID           string `dynamodbav:"id"`
	Email        string `dynamodbav:"email"`
	DisplayName  string `dynamodbav:"displayName"`
	PasswordHash string `dynamodbav:"passwordHash"`
	Role         string `dynamodbav:"role"`
	CreatedAt    int64  `dynamodbav:"createdAt"`
	UpdatedAt    int64  `dynamodbav:"updatedAt"`
}

func toUserItem(u *models.User) userItem {
	return userItem{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    toMillis(u.CreatedAt),
		UpdatedAt:    toMillis(u.UpdatedAt),
	}
}

func (i userItem) model() *models.User {
	return &models.User{
		ID:           i.ID,
		Email:        i.Email,
		DisplayName:  i.DisplayName,
		PasswordHash: i.PasswordHash,
		Role:         models.Role(i.Role),
		CreatedAt:    fromMillis(i.CreatedAt),
		UpdatedAt:    fromMillis(i.UpdatedAt),
	}
}

// CreateUser writes the user and its email marker in one transaction.
func (s *DynamoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	marker, err := s.putUnique(emailMarker(user.Email), user.ID)
	if err != nil {
		return err
	}
	record, err := putRecord(s.users, toUserItem(user), false)
	if err != nil {
		return err
	}
	return s.transact(ctx, "create user", marker, record)
}

// GetUserByID retrieves a user by ID.
func (s *DynamoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var item userItem
	found, err := s.getItem(ctx, s.users, id, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return item.model(), nil
}

// GetUserByEmail resolves the email marker, then loads the user.
func (s *DynamoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := s.lookupUnique(ctx, emailMarker(email))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return s.GetUserByID(ctx, id)
}

// UpdateUser stores profile fields and role, moving the email marker when
// the email changes.
func (s *DynamoStore) UpdateUser(ctx context.Context, user *models.User) error {
	current, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}

	next := *current
	next.Email = user.Email
	next.DisplayName = user.DisplayName
	next.Role = user.Role
	next.UpdatedAt = user.UpdatedAt

	record, err := putRecord(s.users, toUserItem(&next), true)
	if err != nil {
		return err
	}
	items := []dynamodbtypes.TransactWriteItem{record}
	if current.Email != next.Email {
		marker, err := s.putUnique(emailMarker(next.Email), next.ID)
		if err != nil {
			return err
		}
		items = append(items, marker, s.deleteUnique(emailMarker(current.Email)))
	}
	return s.transact(ctx, "update user", items...)
}
