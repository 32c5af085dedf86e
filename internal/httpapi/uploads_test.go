package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func multipartUpload(t *testing.T, targetURL, filename string, payload []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()

	resp, err := http.Post(targetURL, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	var parsed map[string]any
	_ = json.Unmarshal(body, &parsed)
	return resp, parsed
}

func TestAvatarUploadMirrorsProfile(t *testing.T) {
	h := newHarness(t)
	h.seedThread(t, "+5491122334455")
	payload := append(append([]byte{}, pngHeader...), make([]byte, 256)...)

	resp, body := multipartUpload(t, h.srv.URL+"/api/uploads/avatar/"+url.PathEscape("+5491122334455"), "me.png", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	avatarURL, _ := body["url"].(string)
	if !strings.HasPrefix(avatarURL, "/files/users/") {
		t.Errorf("url = %q", avatarURL)
	}

	p, _ := h.db.GetProfile("+5491122334455")
	if p == nil || p.Avatar != avatarURL {
		t.Errorf("profile avatar = %+v, want %q", p, avatarURL)
	}
	th, _ := h.db.GetThread("+5491122334455")
	if th.UserAvatar != avatarURL {
		t.Errorf("thread mirror avatar = %q", th.UserAvatar)
	}

	// The object must be fetchable through /files/.
	fileResp, err := http.Get(h.srv.URL + avatarURL)
	if err != nil {
		t.Fatal(err)
	}
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		t.Errorf("file fetch status = %d", fileResp.StatusCode)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	h := newHarness(t)
	resp, _ := multipartUpload(t, h.srv.URL+"/api/uploads/status", "notes.txt", []byte("plain text, definitely not an image"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	payload := append(append([]byte{}, pngHeader...), make([]byte, 64)...)

	_, upload := multipartUpload(t, h.srv.URL+"/api/uploads/status", "sunset.png", payload)
	imageURL, _ := upload["url"].(string)
	if imageURL == "" {
		t.Fatal("upload returned no url")
	}

	resp, created := postJSONMap(t, h.srv.URL+"/api/statuses", map[string]string{"imageUrl": imageURL, "caption": "atardecer"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	st, _ := created["status"].(map[string]any)
	id, _ := st["id"].(string)
	if id == "" {
		t.Fatalf("created = %v", created)
	}

	listResp, err := http.Get(h.srv.URL + "/api/statuses")
	if err != nil {
		t.Fatal(err)
	}
	listBody, _ := io.ReadAll(listResp.Body)
	_ = listResp.Body.Close()
	if !strings.Contains(string(listBody), "atardecer") {
		t.Errorf("list = %s", listBody)
	}

	req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/statuses/"+id, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("delete = %d", delResp.StatusCode)
	}
	got, _ := h.db.GetStatus(id)
	if got != nil {
		t.Error("status still present after delete")
	}
}

func TestStickerUploadAutoVivifies(t *testing.T) {
	h := newHarness(t)
	payload := append(append([]byte{}, pngHeader...), make([]byte, 64)...)

	resp, _ := multipartUpload(t, h.srv.URL+"/api/uploads/sticker/travel", "wave.png", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	listResp, err := http.Get(h.srv.URL + "/api/stickers")
	if err != nil {
		t.Fatal(err)
	}
	listBody, _ := io.ReadAll(listResp.Body)
	_ = listResp.Body.Close()
	if !strings.Contains(string(listBody), "travel") {
		t.Errorf("packs = %s", listBody)
	}
}

func postJSONMap(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	resp, body := postJSON(t, url, payload)
	var parsed map[string]any
	_ = json.Unmarshal([]byte(body), &parsed)
	return resp, parsed
}

func TestProfileGetCreatesDefaults(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.srv.URL + "/api/profile/" + url.PathEscape("+5491122334455"))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Estoy usando WhatsApp") {
		t.Errorf("profile = %s, want default about", body)
	}
}
