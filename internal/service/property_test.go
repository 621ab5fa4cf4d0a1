package service

import (
	"context"
	"testing"

	"property-listing-api/internal/auth"
	"property-listing-api/internal/models"
	"property-listing-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validInput() *PropertyInput {
	return &PropertyInput{
		Type:        "apartment",
		Title:       "Bright flat near the park",
		Description: "Two bedrooms, renovated kitchen, balcony.",
		Price:       ptr(150.0),
		Area:        ptr(55.5),
		Rooms:       ptr(3),
		Bathrooms:   ptr(1),
		Address:     "12 Rue de Rivoli",
		City:        "Paris",
		PostalCode:  "75001",
		Latitude:    ptr(48.8566),
		Longitude:   ptr(2.3522),
		Features:    []string{"balcony", "elevator", "balcony"},
	}
}

type propertyFixture struct {
	store   *memoryStore
	files   *storage.LocalStorage
	indexer *recordingIndexer
	svc     *PropertyService
	images  *ImageService
}

func newPropertyFixture(t *testing.T) *propertyFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir(), "/uploads/properties", 5<<20)
	require.NoError(t, err)

	store := newMemoryStore()
	indexer := &recordingIndexer{}
	return &propertyFixture{
		store:   store,
		files:   files,
		indexer: indexer,
		svc:     NewPropertyService(store, files, indexer, Pagination{DefaultLimit: 20, MaxLimit: 100}),
		images:  NewImageService(store, files, UploadLimits{MaxFiles: 10, MaxFileSize: 5 << 20}),
	}
}

var (
	owner    = auth.NewActor("owner-1", "user", "admin")
	stranger = auth.NewActor("someone-else", "user", "admin")
	admin    = auth.NewActor("admin-1", "admin", "admin")
)

func TestCreate_ForcesPendingAndOwner(t *testing.T) {
	f := newPropertyFixture(t)
	ctx := context.Background()

	result, err := f.svc.Create(ctx, owner, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, models.PropertyStatusPending, result.Status)

	stored, err := f.svc.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusPending, stored.Status)
	assert.Equal(t, "owner-1", stored.UserID)
}

func TestCreate_FeaturesRoundTripInOrder(t *testing.T) {
	f := newPropertyFixture(t)
	ctx := context.Background()

	input := validInput()
	input.Features = []string{"pool", "garage", "pool", "garden"}

	result, err := f.svc.Create(ctx, owner, input)
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pool", "garage", "pool", "garden"}, []string(stored.Features))
}

func TestCreate_Validation(t *testing.T) {
	f := newPropertyFixture(t)

	tests := []struct {
		name   string
		mutate func(*PropertyInput)
		field  string
	}{
		{"unknown type", func(in *PropertyInput) { in.Type = "castle" }, "type"},
		{"short title", func(in *PropertyInput) { in.Title = "Flat" }, "title"},
		{"long title", func(in *PropertyInput) { in.Title = string(make([]byte, 101)) }, "title"},
		{"short description", func(in *PropertyInput) { in.Description = "tiny" }, "description"},
		{"negative price", func(in *PropertyInput) { in.Price = ptr(-1.0) }, "price"},
		{"price beyond column precision", func(in *PropertyInput) { in.Price = ptr(1e12) }, "price"},
		{"missing area", func(in *PropertyInput) { in.Area = nil }, "area"},
		{"area beyond column precision", func(in *PropertyInput) { in.Area = ptr(1e8) }, "area"},
		{"negative rooms", func(in *PropertyInput) { in.Rooms = ptr(-1) }, "rooms"},
		{"blank city", func(in *PropertyInput) { in.City = "   " }, "city"},
		{"latitude out of range", func(in *PropertyInput) { in.Latitude = ptr(91.0) }, "latitude"},
		{"longitude out of range", func(in *PropertyInput) { in.Longitude = ptr(-181.0) }, "longitude"},
		{"missing features", func(in *PropertyInput) { in.Features = nil }, "features"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)

			_, err := f.svc.Create(context.Background(), owner, input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			fields := make([]string, 0, len(verr.Fields))
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	t.Run("largest storable price and area are allowed", func(t *testing.T) {
		input := validInput()
		input.Price = ptr(99999999.99)
		input.Area = ptr(99999999.99)
		_, err := f.svc.Create(context.Background(), owner, input)
		assert.NoError(t, err)
	})

	t.Run("empty features array is allowed", func(t *testing.T) {
		input := validInput()
		input.Features = []string{}
		_, err := f.svc.Create(context.Background(), owner, input)
		assert.NoError(t, err)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("owner update resets status to pending", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1", Title: "Old title", Status: models.PropertyStatusActive})

		input := validInput()
		input.Title = "New shiny title"
		result, err := f.svc.Update(ctx, p.ID, owner, input)
		require.NoError(t, err)
		assert.Equal(t, models.PropertyStatusPending, result.Status)

		stored, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PropertyStatusPending, stored.Status)
		assert.Equal(t, "New shiny title", stored.Title)
		assert.Equal(t, "owner-1", stored.UserID)
		assert.Equal(t, []string{p.ID}, f.indexer.removed)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1", Status: models.PropertyStatusActive})

		_, err := f.svc.Update(ctx, p.ID, stranger, validInput())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin may update another user's listing", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1", Status: models.PropertyStatusSold})

		_, err := f.svc.Update(ctx, p.ID, admin, validInput())
		require.NoError(t, err)

		stored, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "owner-1", stored.UserID)
		assert.Equal(t, models.PropertyStatusPending, stored.Status)
	})

	t.Run("missing property is not found before validation", func(t *testing.T) {
		f := newPropertyFixture(t)
		_, err := f.svc.Update(ctx, "nope", owner, &PropertyInput{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("forbidden is reported before validation", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1"})
		_, err := f.svc.Update(ctx, p.ID, stranger, &PropertyInput{})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newPropertyFixture(t)

	f.store.seed(models.Property{Title: "cheap", Status: models.PropertyStatusActive, Type: "house", Price: 50, City: "Lyon", PostalCode: "69001"})
	f.store.seed(models.Property{Title: "low edge", Status: models.PropertyStatusActive, Type: "apartment", Price: 100, City: "Paris", PostalCode: "75000"})
	f.store.seed(models.Property{Title: "middle", Status: models.PropertyStatusActive, Type: "apartment", Price: 150, City: "Nice", PostalCode: "06000", Address: "1 rue 75000 bis"})
	f.store.seed(models.Property{Title: "high edge", Status: models.PropertyStatusActive, Type: "house", Price: 200, City: "Lille", PostalCode: "59000"})
	f.store.seed(models.Property{Title: "pricey", Status: models.PropertyStatusActive, Type: "land", Price: 250, City: "Paris", PostalCode: "75010"})
	f.store.seed(models.Property{Title: "pending", Status: models.PropertyStatusPending, Price: 150, PostalCode: "75000"})
	f.store.seed(models.Property{Title: "sold", Status: models.PropertyStatusSold, Price: 150, PostalCode: "75000"})

	titles := func(r *ListResult) []string {
		out := make([]string, 0, len(r.Properties))
		for _, p := range r.Properties {
			out = append(out, p.Title)
		}
		return out
	}

	t.Run("only active listings, newest first", func(t *testing.T) {
		r, err := f.svc.List(ctx, ListFilter{}, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), r.Total)
		assert.Equal(t, []string{"pricey", "high edge", "middle", "low edge", "cheap"}, titles(r))
		for _, p := range r.Properties {
			assert.Equal(t, models.PropertyStatusActive, p.Status)
		}
	})

	t.Run("inclusive price range", func(t *testing.T) {
		r, err := f.svc.List(ctx, ListFilter{MinPrice: ptr(100.0), MaxPrice: ptr(200.0)}, 1, 20)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"low edge", "middle", "high edge"}, titles(r))
		for _, p := range r.Properties {
			assert.GreaterOrEqual(t, p.Price, 100.0)
			assert.LessOrEqual(t, p.Price, 200.0)
		}
	})

	t.Run("location matches postal code and address", func(t *testing.T) {
		r, err := f.svc.List(ctx, ListFilter{Location: "75000"}, 1, 20)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"low edge", "middle"}, titles(r))
	})

	t.Run("type filter", func(t *testing.T) {
		r, err := f.svc.List(ctx, ListFilter{Type: "house"}, 1, 20)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"cheap", "high edge"}, titles(r))
	})

	t.Run("pagination keeps the total", func(t *testing.T) {
		r, err := f.svc.List(ctx, ListFilter{}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), r.Total)
		assert.Equal(t, 2, r.Page)
		assert.Equal(t, []string{"middle", "low edge"}, titles(r))
	})

	t.Run("limit is capped and bad page falls back", func(t *testing.T) {
		r, err := f.svc.List(ctx, ListFilter{}, -3, 5000)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Page)
		assert.Equal(t, 100, r.Limit)
	})
}

func TestGet_NotFound(t *testing.T) {
	f := newPropertyFixture(t)
	_, err := f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsNonActiveListings(t *testing.T) {
	f := newPropertyFixture(t)
	p := f.store.seed(models.Property{UserID: "owner-1", Status: models.PropertyStatusArchived})

	got, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusArchived, got.Status)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes all images and their files", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1", Title: "With images", Status: models.PropertyStatusActive})

		uploaded, err := f.images.Upload(ctx, p.ID, owner, []UploadFile{
			memFile("a.jpg", "image/jpeg", "aaa"),
			memFile("b.png", "image/png", "bbb"),
			memFile("c.webp", "image/webp", "ccc"),
		})
		require.NoError(t, err)
		require.Len(t, uploaded, 3)

		require.NoError(t, f.svc.Delete(ctx, p.ID, owner))

		assert.Equal(t, 0, f.store.imageCount(p.ID))
		_, err = f.svc.Get(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, storedURLs(t, f.files))

		require.Len(t, f.store.deleteLogs, 1)
		assert.Equal(t, models.DeleteReasonOwner, f.store.deleteLogs[0].Reason)
		assert.Equal(t, 3, f.store.deleteLogs[0].ImageCount)
		assert.Contains(t, f.indexer.removed, p.ID)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1"})

		assert.ErrorIs(t, f.svc.Delete(ctx, p.ID, stranger), ErrForbidden)
		_, err := f.svc.Get(ctx, p.ID)
		assert.NoError(t, err)
	})

	t.Run("admin delete is logged as admin deletion", func(t *testing.T) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1"})

		require.NoError(t, f.svc.Delete(ctx, p.ID, admin))
		require.Len(t, f.store.deleteLogs, 1)
		assert.Equal(t, models.DeleteReasonAdmin, f.store.deleteLogs[0].Reason)
		assert.Equal(t, "admin-1", f.store.deleteLogs[0].ActorID)
	})

	t.Run("missing property", func(t *testing.T) {
		f := newPropertyFixture(t)
		assert.ErrorIs(t, f.svc.Delete(ctx, "missing", owner), ErrNotFound)
	})
}
