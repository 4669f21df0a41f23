package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/auth"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/db"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/models"
)

const (
	defaultBcryptCost = 14
	systemUserName    = "system"
)

type General struct {
	db         *gorm.DB
	logger     *zap.SugaredLogger
	jwt        *auth.JWTManager
	denylist   auth.Denylist
	bcryptCost int
}

func NewGeneral(db *gorm.DB, l *zap.SugaredLogger, jwt *auth.JWTManager, denylist auth.Denylist) *General {
	return &General{
		db:         db,
		logger:     l,
		jwt:        jwt,
		denylist:   denylist,
		bcryptCost: defaultBcryptCost,
	}
}

func (s *General) Register(ctx context.Context, email, pass, name string) (*db.User, error) {
	hash, err := s.bcryptGen(pass)
	if err != nil {
		return nil, errors.Wrap(err, "bcryptGen")
	}

	user := db.User{
		Email:    normalizeEmail(email),
		Password: hash,
		Name:     strings.TrimSpace(name),
	}
	res := s.db.WithContext(ctx).Create(&user)
	if res.Error != nil {
		return nil, storageErr(res.Error, "create user", ErrEmailTaken)
	}
	return &user, nil
}

func (s *General) Login(ctx context.Context, email, pass string) (*auth.TokenPair, error) {
	user := db.User{}
	res := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(res.Error, "find user")
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.jwt.IssuePair(user.ID)
}

// Authenticate validates an access token and returns its claims.
func (s *General) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	return s.validate(ctx, token, auth.TokenTypeAccess)
}

// Refresh exchanges a refresh token for a new pair. The used refresh token is revoked.
func (s *General) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.validate(ctx, refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if _, err := s.Profile(ctx, userID); err != nil {
		if KindOf(err) == KindNotFound {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return s.jwt.IssuePair(userID)
}

// Logout revokes the access token and, when given, the refresh token.
func (s *General) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if err := s.denylist.Revoke(ctx, access.ID, access.ExpiresAt.Time); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.jwt.Validate(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		// already unusable
		return nil
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *General) Profile(ctx context.Context, userID uint64) (*db.User, error) {
	user := db.User{}
	res := s.db.WithContext(ctx).First(&user, userID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(res.Error, "find user")
	}
	return &user, nil
}

func (s *General) UpdateProfile(ctx context.Context, userID uint64, req models.ProfileUpdateReq) (*db.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationError("name must not be empty")
		}
		updates["name"] = name
	}
	if req.Password != nil {
		hash, err := s.bcryptGen(*req.Password)
		if err != nil {
			return nil, errors.Wrap(err, "bcryptGen")
		}
		updates["password"] = hash
	}

	if len(updates) != 0 {
		res := s.db.WithContext(ctx).Model(&db.User{GormForkedModel: db.GormForkedModel{ID: userID}}).Updates(updates)
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "update user")
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}

	return s.Profile(ctx, userID)
}

// EnsureSystemUser returns the id of the user owning ingested postings,
// creating it on first use. Its password is random and never handed out.
func (s *General) EnsureSystemUser(ctx context.Context, email string) (uint64, error) {
	hash, err := s.bcryptGen(uuid.New().String())
	if err != nil {
		return 0, errors.Wrap(err, "bcryptGen")
	}

	var id uint64
	err = s.db.WithContext(ctx).Raw(`INSERT INTO users (email, password, name, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`, normalizeEmail(email), hash, systemUserName).Row().Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "ensure system user")
	}
	return id, nil
}

func (s *General) validate(ctx context.Context, token, typ string) (*auth.Claims, error) {
	claims, err := s.jwt.Validate(token, typ)
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Msg: ErrInvalidToken.Msg, Err: err}
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *General) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", validationError("password must be at most 72 bytes")
	}
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *General) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
