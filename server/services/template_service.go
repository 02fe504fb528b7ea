package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed mail_templates/*.html
var mailTemplates embed.FS

const (
	TemplateOrderReceipt  = "order_receipt"
	TemplatePaymentFailed = "payment_failed"
	TemplateOfficeMessage = "office_message"
)

// TemplateService renders the embedded HTML mail templates
type TemplateService struct {
	templateCache map[string]*template.Template
	templateMutex sync.RWMutex
}

func NewTemplateService() *TemplateService {
	return &TemplateService{
		templateCache: make(map[string]*template.Template),
	}
}

// RenderTemplate renders templateID with data, parsing it on first use
func (ts *TemplateService) RenderTemplate(templateID string, data map[string]interface{}) (string, error) {
	ts.templateMutex.RLock()
	tmpl, exists := ts.templateCache[templateID]
	ts.templateMutex.RUnlock()

	if !exists {
		var err error
		tmpl, err = template.ParseFS(mailTemplates, "mail_templates/"+templateID+".html")
		if err != nil {
			return "", fmt.Errorf("failed to parse template %s: %w", templateID, err)
		}

		ts.templateMutex.Lock()
		ts.templateCache[templateID] = tmpl
		ts.templateMutex.Unlock()
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateID, err)
	}
	return rendered.String(), nil
}
