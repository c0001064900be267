package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"podigest/internal/models"
	"podigest/internal/test"
)

func TestAuthMiddleware(t *testing.T) {
	// This is a valid initData string for a user with ID 123, username "testuser"
	// The hash is pre-calculated with a dummy bot token "dummy-token"
	validInitData := "query_id=AAHdF614AAAAAN0Xrhom_pA&user=%7B%22id%22%3A123%2C%22first_name%22%3A%22Test%22%2C%22last_name%22%3A%22User%22%2C%22username%22%3A%22testuser%22%2C%22language_code%22%3A%22en%22%7D&auth_date=1672531200&hash=fb58f6bb10b70647fcab47fb503b129de22799ef47d14e6a31a2641a8d82a363"

	t.Setenv("TELEGRAM_BOT_TOKEN", "dummy-token")

	t.Run("valid auth data", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "telegram_username", "rss_uuid", "created_at", "updated_at"}).
			AddRow(int64(123), "testuser", "some-uuid", now, now)
		mock.ExpectQuery(`INSERT INTO subscribers`).WithArgs(int64(123), "testuser").WillReturnRows(rows)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "tma "+validInitData)
		rr := httptest.NewRecorder()

		mockHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxSubscriber := r.Context().Value(SubscriberContextKey)
			assert.NotNil(t, ctxSubscriber)
			subscriber, ok := ctxSubscriber.(*models.Subscriber)
			assert.True(t, ok)
			assert.Equal(t, int64(123), subscriber.ID)
			w.WriteHeader(http.StatusOK)
		})

		AuthMiddleware(mockHandler).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no authorization header", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rr := httptest.NewRecorder()
		AuthMiddleware(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
