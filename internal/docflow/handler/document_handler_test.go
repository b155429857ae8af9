package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/inkmill/docflow/internal/docflow/repository"
	"github.com/inkmill/docflow/internal/docflow/service"
	"github.com/inkmill/docflow/internal/docflow/testutil"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var workflowFields = json.RawMessage(`[
	{"id": "name", "type": "text", "x": 100, "y": 50, "width": 200, "height": 30},
	{"id": "sig1", "type": "signature", "x": 100, "y": 400, "width": 150, "height": 60, "reviewerEmail": "reviewer@x.com"}
]`)

func setupDocumentTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	logger := zap.NewNop()

	userSvc := service.NewUserService(repos.User)
	docSvc := service.NewDocumentService(db, repos, logger)
	histSvc := service.NewHistoryService(repos)
	renderSvc := service.NewRenderService(repos, nil, nil, "", logger)
	h := NewDocumentHandler(docSvc, histSvc, renderSvc, userSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	docs := api.Group("/documents")
	docs.GET("", h.List)
	docs.POST("", h.Create)
	docs.GET("/:id", h.Get)
	docs.PUT("/:id/data", h.UpdateData)
	docs.POST("/:id/editor", h.AssignEditor)
	docs.POST("/:id/reviewer", h.AssignReviewer)
	docs.POST("/:id/submit-review", h.SubmitForReview)
	docs.POST("/:id/complete-editing", h.CompleteEditing)
	docs.POST("/:id/approve", h.Approve)
	docs.POST("/:id/reject", h.Reject)
	docs.GET("/:id/can-review", h.CanReview)
	docs.GET("/:id/history", h.History)
	docs.GET("/:id/download-pdf", h.DownloadPDF)

	testutil.SeedTestUser(t, db, "tpl-owner", "Owner", "owner@x.com")
	testutil.SeedTestTemplate(t, db, "tpl-001", "合同模板", "tpl-owner", workflowFields)

	return router, db
}

func creatorToken() string {
	return testutil.GenerateTestToken("creator-001", "Creator", "creator@x.com")
}

func editorToken() string {
	return testutil.GenerateTestToken("editor-001", "Editor", "editor@x.com")
}

func reviewerToken() string {
	return testutil.GenerateTestToken("reviewer-001", "Reviewer", "reviewer@x.com")
}

func createDocument(t *testing.T, router *gin.Engine, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/documents", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	return resp["data"].(map[string]interface{})
}

func TestDocumentCreate(t *testing.T) {
	router, _ := setupDocumentTest(t)

	doc := createDocument(t, router, creatorToken(), map[string]interface{}{
		"template_id": "tpl-001",
		"title":       "采购合同",
	})
	if doc["status"] != "DRAFT" {
		t.Errorf("Expected status DRAFT, got %v", doc["status"])
	}
	if doc["id"] == nil || doc["id"] == "" {
		t.Error("Expected non-empty id")
	}
}

func TestDocumentCreateTemplateMissing(t *testing.T) {
	router, _ := setupDocumentTest(t)

	w := testutil.DoRequest(router, "POST", "/api/v1/documents",
		map[string]interface{}{"template_id": "no-such-template"}, creatorToken())
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDocumentWorkflowOverHTTP(t *testing.T) {
	router, _ := setupDocumentTest(t)
	creator, editor, reviewer := creatorToken(), editorToken(), reviewerToken()

	doc := createDocument(t, router, creator, map[string]interface{}{"template_id": "tpl-001"})
	docID := doc["id"].(string)

	// 指派编辑人
	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/editor",
		map[string]string{"email": "editor@x.com"}, creator)
	if w.Code != http.StatusOK {
		t.Fatalf("assign editor: %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "EDITING" {
		t.Errorf("Expected EDITING, got %v", data["status"])
	}

	// 编辑人填写数据
	w = testutil.DoRequest(router, "PUT", "/api/v1/documents/"+docID+"/data",
		map[string]interface{}{
			"title":          "采购合同",
			"coordinateData": map[string]string{"name": "Alice"},
		}, editor)
	if w.Code != http.StatusOK {
		t.Fatalf("update data: %d: %s", w.Code, w.Body.String())
	}

	// 提交审核
	w = testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/submit-review", nil, editor)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "READY_FOR_REVIEW" {
		t.Errorf("Expected READY_FOR_REVIEW, got %v", data["status"])
	}

	// 指派审核人
	w = testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/reviewer",
		map[string]string{"email": "reviewer@x.com"}, creator)
	if w.Code != http.StatusOK {
		t.Fatalf("assign reviewer: %d: %s", w.Code, w.Body.String())
	}

	// can-review
	w = testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID+"/can-review", nil, reviewer)
	if w.Code != http.StatusOK {
		t.Fatalf("can-review: %d", w.Code)
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["can_review"] != true {
		t.Errorf("Expected can_review true, got %v", data["can_review"])
	}

	// 审核通过
	w = testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/approve",
		map[string]string{"signature": "aGVsbG8="}, reviewer)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "COMPLETED" {
		t.Errorf("Expected COMPLETED, got %v", data["status"])
	}

	// 历史对参与者可见，倒序
	w = testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID+"/history", nil, editor)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d: %s", w.Code, w.Body.String())
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 6 {
		t.Errorf("Expected 6 history items, got %d", len(items))
	}
}

func TestDocumentCompleteEditingRoute(t *testing.T) {
	router, _ := setupDocumentTest(t)
	creator, editor := creatorToken(), editorToken()

	doc := createDocument(t, router, creator, map[string]interface{}{
		"template_id":  "tpl-001",
		"editor_email": "editor@x.com",
	})
	docID := doc["id"].(string)

	// complete-editing 与 submit-review 走同一个状态迁移
	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/complete-editing", nil, editor)
	if w.Code != http.StatusOK {
		t.Fatalf("complete editing: %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "READY_FOR_REVIEW" {
		t.Errorf("Expected READY_FOR_REVIEW, got %v", data["status"])
	}

	// 已经提交过的不能再提交
	w = testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/complete-editing", nil, editor)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDocumentForbiddenResponses(t *testing.T) {
	router, _ := setupDocumentTest(t)
	creator := creatorToken()
	outsider := testutil.GenerateTestToken("outsider-001", "Outsider", "outsider@x.com")

	doc := createDocument(t, router, creator, map[string]interface{}{"template_id": "tpl-001"})
	docID := doc["id"].(string)

	// 局外人不能指派编辑人
	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/editor",
		map[string]string{"email": "editor@x.com"}, outsider)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}

	// 局外人不能看历史
	w = testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID+"/history", nil, outsider)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDocumentInvalidStateResponses(t *testing.T) {
	router, _ := setupDocumentTest(t)
	creator := creatorToken()

	doc := createDocument(t, router, creator, map[string]interface{}{"template_id": "tpl-001"})
	docID := doc["id"].(string)

	// DRAFT状态提交审核 → 409
	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/submit-review", nil, creator)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDocumentRejectRequiresReason(t *testing.T) {
	router, _ := setupDocumentTest(t)
	creator := creatorToken()

	doc := createDocument(t, router, creator, map[string]interface{}{"template_id": "tpl-001"})
	docID := doc["id"].(string)

	w := testutil.DoRequest(router, "POST", "/api/v1/documents/"+docID+"/reject",
		map[string]string{}, creator)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDocumentUnauthorized(t *testing.T) {
	router, _ := setupDocumentTest(t)

	w := testutil.DoRequest(router, "GET", "/api/v1/documents", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestDocumentDownloadPDF(t *testing.T) {
	router, db := setupDocumentTest(t)
	creator := creatorToken()

	// 准备真实的模板PDF文件
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "tpl-001.pdf")
	pdfDoc := gofpdf.New("P", "pt", "A4", "")
	pdfDoc.AddPage()
	pdfDoc.SetFont("Helvetica", "", 14)
	pdfDoc.Text(72, 72, "Template")
	var buf bytes.Buffer
	if err := pdfDoc.Output(&buf); err != nil {
		t.Fatalf("build template pdf: %v", err)
	}
	if err := os.WriteFile(tplPath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write template pdf: %v", err)
	}
	db.Exec("UPDATE templates SET pdf_file_path = ? WHERE id = ?", tplPath, "tpl-001")

	doc := createDocument(t, router, creator, map[string]interface{}{"template_id": "tpl-001"})
	docID := doc["id"].(string)

	w := testutil.DoRequest(router, "GET", "/api/v1/documents/"+docID+"/download-pdf", nil, creator)
	if w.Code != http.StatusOK {
		t.Fatalf("download: %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("response body is not a PDF")
	}
}
