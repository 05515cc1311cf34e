package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sagip-cad/emergency-dispatch-api/api/handlers"
)

func TestCloudinary_GenerateSignature(t *testing.T) {
	t.Setenv("CLOUDINARY_UPLOAD_PRESET", "emergency_media")
	t.Setenv("CLOUDINARY_API_SECRET", "shhh")

	req, err := http.NewRequest("POST", "/api/v1/generate-signature", nil)
	if err != nil {
		t.Fatal(err)
	}

	c := handlers.CloudinaryHandler{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.GenerateSignature)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	assert.NotEmpty(t, response["timestamp"])
	assert.NotEmpty(t, response["signature"])
}
