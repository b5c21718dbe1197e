package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expanse/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Fake Rows ---

// fakeRows implements pgx.Rows over an in-memory result set.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func newFakeRows(rows ...[]any) *fakeRows {
	return &fakeRows{rows: rows, idx: -1}
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(row), len(dest))
	}
	for i, src := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = src.(string)
		case *int:
			*d = src.(int)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

// --- Fixtures ---

func planRows() *fakeRows {
	return newFakeRows(
		[]any{"2GB Ram", "2gb", 38},
		[]any{"4GB Ram", "4gb", 40},
	)
}

func optionRows() *fakeRows {
	return newFakeRows(
		[]any{"location", "us-ny", 147},
		[]any{"location", "eu-fra", 149},
		[]any{"software", "paper", 150},
		[]any{"splits", "no-extra", 177},
		[]any{"backups", "2-included", 176},
	)
}

func settingRows() *fakeRows {
	return newFakeRows(
		[]any{"checkout_base_url", "https://my.expanse.host"},
		[]any{"option_index_location", "39"},
		[]any{"option_index_software", "40"},
		[]any{"option_index_splits", "42"},
		[]any{"option_index_backups", "44"},
		[]any{"server_name_field", "57"},
	)
}

func expectQuery(db *mockDBTX, table string, rows pgx.Rows, err error) {
	db.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, table)
	}), mock.Anything).Return(rows, err).Once()
}

// --- Tests ---

func TestCatalogRepository_Load_Success(t *testing.T) {
	db := new(mockDBTX)
	expectQuery(db, "catalog_plans", planRows(), nil)
	expectQuery(db, "catalog_options", optionRows(), nil)
	expectQuery(db, "catalog_settings", settingRows(), nil)

	cat, err := NewCatalogRepository(db).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "4gb", cat.PlanNames["4GB Ram"])
	assert.Equal(t, 40, cat.Products["4gb"])
	assert.Equal(t, 147, cat.Locations["us-ny"])
	assert.Equal(t, 150, cat.Software["paper"])
	assert.Equal(t, 39, cat.Options.Location)
	assert.Equal(t, 57, cat.ServerNameField)
	assert.Equal(t, "https://my.expanse.host", cat.CheckoutBaseURL)
	db.AssertExpectations(t)
}

func TestCatalogRepository_Load_QueryFailure(t *testing.T) {
	db := new(mockDBTX)
	expectQuery(db, "catalog_plans", nil, errors.New("connection refused"))

	_, err := NewCatalogRepository(db).Load(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalConfig, appErr.Code)
}

func TestCatalogRepository_Load_UnknownDimension(t *testing.T) {
	db := new(mockDBTX)
	expectQuery(db, "catalog_plans", planRows(), nil)
	expectQuery(db, "catalog_options", newFakeRows([]any{"flavour", "vanilla", 1}), nil)

	_, err := NewCatalogRepository(db).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flavour")
}

func TestCatalogRepository_Load_NonNumericSetting(t *testing.T) {
	db := new(mockDBTX)
	expectQuery(db, "catalog_plans", planRows(), nil)
	expectQuery(db, "catalog_options", optionRows(), nil)
	expectQuery(db, "catalog_settings", newFakeRows([]any{"server_name_field", "abc"}), nil)

	_, err := NewCatalogRepository(db).Load(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalConfig, appErr.Code)
}

func TestCatalogRepository_Load_UnknownSetting(t *testing.T) {
	db := new(mockDBTX)
	expectQuery(db, "catalog_plans", planRows(), nil)
	expectQuery(db, "catalog_options", optionRows(), nil)
	expectQuery(db, "catalog_settings", newFakeRows([]any{"theme_color", "blue"}), nil)

	_, err := NewCatalogRepository(db).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme_color")
}

// An incomplete catalog (missing settings) must fail validation even when
// every query succeeds.
func TestCatalogRepository_Load_IncompleteCatalogRejected(t *testing.T) {
	db := new(mockDBTX)
	expectQuery(db, "catalog_plans", planRows(), nil)
	expectQuery(db, "catalog_options", optionRows(), nil)
	expectQuery(db, "catalog_settings", newFakeRows(), nil)

	_, err := NewCatalogRepository(db).Load(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalConfig, appErr.Code)
}

func TestCatalogRepository_Load_RowsErrPropagated(t *testing.T) {
	db := new(mockDBTX)
	rows := planRows()
	rows.err = errors.New("broken stream")
	expectQuery(db, "catalog_plans", rows, nil)

	_, err := NewCatalogRepository(db).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken stream")
}
