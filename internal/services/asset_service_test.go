package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func uploadRequest(name string, size int) *UploadFileRequest {
	return &UploadFileRequest{Name: name, FileName: "Campus Map.PNG", ContentType: "image/png", Size: int64(size)}
}

func TestAssetUpload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	assets := env.manager.Asset()

	asset, err := assets.UploadFile(ctx, env.buddy, uploadRequest("Campus map", len(pngBytes)), bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if asset.Type != models.AssetTypeImage || asset.Host != models.AssetHostLocal || asset.MimeType != "image/png" {
		t.Errorf("UploadFile() = %+v", asset)
	}
	if !strings.HasSuffix(asset.Src, ".png") {
		t.Errorf("Src = %q, want .png key", asset.Src)
	}

	tests := []struct {
		name    string
		req     *UploadFileRequest
		body    []byte
		wantErr error
		field   string
	}{
		{name: "name taken", req: uploadRequest(" CAMPUS MAP ", len(pngBytes)), body: pngBytes, wantErr: ErrAssetNameTaken, field: "name"},
		{name: "text file", req: uploadRequest("Notes", 5), body: []byte("hello"), wantErr: ErrUnsupportedFileType},
		{name: "declared too large", req: uploadRequest("Huge", MaxFileSize+1), body: pngBytes, wantErr: ErrFileTooLarge},
		{name: "stream too large", req: uploadRequest("Sneaky", 10), body: append(pngBytes, make([]byte, MaxFileSize)...), wantErr: ErrFileTooLarge},
		{name: "blank name", req: uploadRequest("   ", len(pngBytes)), body: pngBytes, field: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assets.UploadFile(ctx, env.buddy, tt.req, bytes.NewReader(tt.body))
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("UploadFile() error = %v, want %v", err, tt.wantErr)
			}
			if tt.field != "" && fieldMessage(t, err, tt.field) == "" {
				t.Errorf("no message for %s in %v", tt.field, err)
			}
		})
	}

	if ok, _ := assets.IsNameAvailable(ctx, "campus MAP"); ok {
		t.Error("IsNameAvailable(taken) = true")
	}
	if ok, _ := assets.IsNameAvailable(ctx, "Library"); !ok {
		t.Error("IsNameAvailable(free) = false")
	}
}

func TestAssetAccessAndDownload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	assets := env.manager.Asset()

	req := uploadRequest("Campus map", len(pngBytes))
	req.SharedUsers = []string{env.otherBuddy.ID}
	asset, err := assets.UploadFile(ctx, env.buddy, req, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatal(err)
	}

	d, err := assets.Download(ctx, env.otherBuddy, asset.ID)
	if err != nil {
		t.Fatalf("Download(shared) error = %v", err)
	}
	got, _ := io.ReadAll(d.Body)
	d.Body.Close()
	if d.URL != "" || !bytes.Equal(got, pngBytes) || d.ContentType != "image/png" {
		t.Errorf("Download() url=%q len=%d type=%q", d.URL, len(got), d.ContentType)
	}

	_, err = assets.Get(ctx, env.hr, asset.ID)
	assertPermissionDenied(t, err)
	if _, err := assets.Get(ctx, env.admin, asset.ID); err != nil {
		t.Errorf("Get(admin) error = %v", err)
	}

	name := "Shared map"
	_, err = assets.Update(ctx, env.otherBuddy, asset.ID, &UpdateAssetRequest{Name: &name})
	assertPermissionDenied(t, err)
	assertPermissionDenied(t, assets.Delete(ctx, env.otherBuddy, asset.ID))

	listed, err := assets.List(ctx, env.otherBuddy, nil)
	if err != nil || len(listed) != 1 {
		t.Errorf("List(shared) = %v, %v", listed, err)
	}
	docs := models.AssetTypeDocument
	if listed, _ := assets.List(ctx, env.otherBuddy, &docs); len(listed) != 0 {
		t.Errorf("List(documents) = %v", listed)
	}

	if err := assets.Delete(ctx, env.buddy, asset.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	store, _ := env.files.Get(models.AssetHostLocal)
	if _, err := store.Open(ctx, asset.Src); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("stored file survived delete: %v", err)
	}
	if _, err := assets.Get(ctx, env.buddy, asset.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Get(deleted) error = %v", err)
	}
}

func TestEmailTemplates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	assets := env.manager.Asset()

	tmpl, err := assets.CreateTemplate(ctx, env.buddy, &CreateTemplateRequest{
		Name: "Welcome",
		Body: `<p onclick="x()">Hi {{firstName}}</p><script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if tmpl.Type != models.AssetTypeEmailTemplate || tmpl.Src != "<p>Hi {{firstName}}</p>" {
		t.Errorf("CreateTemplate() src = %q", tmpl.Src)
	}

	if _, err := assets.CreateTemplate(ctx, env.buddy, &CreateTemplateRequest{Name: "Empty", Body: "<p> </p>"}); fieldMessage(t, err, "body") == "" {
		t.Errorf("CreateTemplate(empty) error = %v", err)
	}
	if _, err := assets.CreateTemplate(ctx, env.buddy, &CreateTemplateRequest{Name: "Bad", Body: "<p>{{password}}</p>"}); !errors.Is(err, ErrInvalidVariables) {
		t.Errorf("CreateTemplate(bad variable) error = %v", err)
	}

	body := "<p>Hello {{lastName}}</p>"
	updated, err := assets.Update(ctx, env.buddy, tmpl.ID, &UpdateAssetRequest{Body: &body})
	if err != nil || updated.Src != body || updated.Name != "Welcome" {
		t.Errorf("Update(body) = %+v, %v", updated, err)
	}

	if _, err := assets.Download(ctx, env.buddy, tmpl.ID); !errors.Is(err, ErrAssetNotFile) {
		t.Errorf("Download(template) error = %v", err)
	}
}
