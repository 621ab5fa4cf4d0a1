package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"property-listing-api/internal/models"
	"property-listing-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFile(name, contentType, body string) UploadFile {
	return UploadFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func storedURLs(t *testing.T, files *storage.LocalStorage) []string {
	t.Helper()
	var urls []string
	require.NoError(t, files.Walk(context.Background(), func(f storage.StoredFile) error {
		urls = append(urls, f.URL)
		return nil
	}))
	return urls
}

func TestUpload_StoresFilesInBatchOrder(t *testing.T) {
	f := newPropertyFixture(t)
	ctx := context.Background()
	p := f.store.seed(models.Property{UserID: "owner-1"})

	uploaded, err := f.images.Upload(ctx, p.ID, owner, []UploadFile{
		memFile("first.jpg", "image/jpeg", "1"),
		memFile("second.jpeg", "image/jpeg", "2"),
		memFile("third.PNG", "image/png", "3"),
	})
	require.NoError(t, err)
	require.Len(t, uploaded, 3)

	for _, img := range uploaded {
		assert.NotEmpty(t, img.ID)
		assert.True(t, strings.HasPrefix(img.URL, "/uploads/properties/"+p.ID+"/"))
	}

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 3)
	for i, img := range got.Images {
		assert.Equal(t, i, img.Order)
		assert.Equal(t, uploaded[i].ID, img.ID)
	}
	assert.True(t, strings.HasSuffix(got.Images[2].URL, "_third.png"))
}

func TestUpload_RejectsWholeBatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		files func() []UploadFile
	}{
		{"no files", func() []UploadFile { return nil }},
		{"eleven files", func() []UploadFile {
			files := make([]UploadFile, 11)
			for i := range files {
				files[i] = memFile("a.jpg", "image/jpeg", "x")
			}
			return files
		}},
		{"one bad extension", func() []UploadFile {
			return []UploadFile{
				memFile("ok.jpg", "image/jpeg", "x"),
				memFile("evil.gif", "image/jpeg", "x"),
			}
		}},
		{"content type mismatch", func() []UploadFile {
			return []UploadFile{memFile("doc.png", "application/pdf", "x")}
		}},
		{"oversized declared size", func() []UploadFile {
			big := memFile("big.jpg", "image/jpeg", "x")
			big.Size = 5<<20 + 1
			return []UploadFile{memFile("ok.jpg", "image/jpeg", "x"), big}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPropertyFixture(t)
			p := f.store.seed(models.Property{UserID: "owner-1"})

			_, err := f.images.Upload(ctx, p.ID, owner, tt.files())
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			assert.Equal(t, 0, f.store.imageCount(p.ID))
			assert.Empty(t, storedURLs(t, f.files))
		})
	}
}

func TestUpload_AcceptsContentTypeParameters(t *testing.T) {
	f := newPropertyFixture(t)
	p := f.store.seed(models.Property{UserID: "owner-1"})

	_, err := f.images.Upload(context.Background(), p.ID, owner, []UploadFile{
		memFile("a.webp", "image/webp; charset=binary", "x"),
	})
	assert.NoError(t, err)
}

func TestUpload_AuthorizationAndExistence(t *testing.T) {
	ctx := context.Background()
	f := newPropertyFixture(t)
	p := f.store.seed(models.Property{UserID: "owner-1"})
	files := []UploadFile{memFile("a.jpg", "image/jpeg", "x")}

	_, err := f.images.Upload(ctx, "missing", owner, files)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.images.Upload(ctx, p.ID, stranger, files)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.images.Upload(ctx, p.ID, admin, files)
	assert.NoError(t, err)
}

func TestUpload_StorageFailureRemovesEarlierFiles(t *testing.T) {
	f := newPropertyFixture(t)
	p := f.store.seed(models.Property{UserID: "owner-1"})

	svc := NewImageService(f.store, &failingStorage{FileStorage: f.files, failOn: 3}, UploadLimits{MaxFiles: 10, MaxFileSize: 5 << 20})

	_, err := svc.Upload(context.Background(), p.ID, owner, []UploadFile{
		memFile("a.jpg", "image/jpeg", "1"),
		memFile("b.jpg", "image/jpeg", "2"),
		memFile("c.jpg", "image/jpeg", "3"),
	})
	var serr *StorageError
	require.ErrorAs(t, err, &serr)

	assert.Empty(t, storedURLs(t, f.files))
	assert.Equal(t, 0, f.store.imageCount(p.ID))
}

func TestUpload_RecordFailureRemovesStoredFiles(t *testing.T) {
	f := newPropertyFixture(t)
	p := f.store.seed(models.Property{UserID: "owner-1"})
	f.store.createImagesErr = errors.New("connection reset")

	_, err := f.images.Upload(context.Background(), p.ID, owner, []UploadFile{
		memFile("a.jpg", "image/jpeg", "1"),
		memFile("b.png", "image/png", "2"),
	})
	require.Error(t, err)

	assert.Empty(t, storedURLs(t, f.files))
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*propertyFixture, models.Property, []UploadedImage) {
		f := newPropertyFixture(t)
		p := f.store.seed(models.Property{UserID: "owner-1"})
		uploaded, err := f.images.Upload(ctx, p.ID, owner, []UploadFile{
			memFile("a.jpg", "image/jpeg", "1"),
			memFile("b.jpg", "image/jpeg", "2"),
		})
		require.NoError(t, err)
		return f, p, uploaded
	}

	t.Run("removes file and record", func(t *testing.T) {
		f, p, uploaded := setup(t)

		require.NoError(t, f.images.DeleteImage(ctx, p.ID, uploaded[0].ID, owner))
		assert.Equal(t, 1, f.store.imageCount(p.ID))
		assert.Equal(t, []string{uploaded[1].URL}, storedURLs(t, f.files))
	})

	t.Run("missing file still removes the record", func(t *testing.T) {
		f, p, uploaded := setup(t)

		require.NoError(t, os.Remove(filepath.Join(f.files.Root(), p.ID, filepath.Base(uploaded[0].URL))))

		require.NoError(t, f.images.DeleteImage(ctx, p.ID, uploaded[0].ID, owner))
		assert.Equal(t, 1, f.store.imageCount(p.ID))
	})

	t.Run("image of another property is not found", func(t *testing.T) {
		f, _, uploaded := setup(t)
		other := f.store.seed(models.Property{UserID: "owner-1"})

		err := f.images.DeleteImage(ctx, other.ID, uploaded[0].ID, owner)
		assert.ErrorIs(t, err, ErrImageNotFound)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		f, p, uploaded := setup(t)

		err := f.images.DeleteImage(ctx, p.ID, uploaded[0].ID, stranger)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 2, f.store.imageCount(p.ID))
	})

	t.Run("unknown property", func(t *testing.T) {
		f, _, uploaded := setup(t)
		assert.ErrorIs(t, f.images.DeleteImage(ctx, "missing", uploaded[0].ID, owner), ErrNotFound)
	})
}
