package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"shifttime/internal/dns"
	"shifttime/internal/kv"
	"shifttime/internal/metrics"
	"shifttime/internal/netlify"
	"shifttime/internal/project"
	"shifttime/internal/sheets"
	"shifttime/pkg/archive"
	"shifttime/pkg/templates"
)

type fakeProjects map[int64]*project.Project

func (f fakeProjects) Find(ctx context.Context, id int64) (*project.Project, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %d: %w", id, project.ErrNotFound)
}

type fakeMappings struct {
	stored map[int64]kv.SiteMapping
	status int
	err    error
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{stored: map[int64]kv.SiteMapping{}, status: http.StatusOK}
}

func (f *fakeMappings) GetSiteMapping(ctx context.Context, id int64) (*kv.SiteMapping, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.stored[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeMappings) PutSiteMapping(ctx context.Context, id int64, m kv.SiteMapping) (sheets.Result, error) {
	if f.err != nil {
		return sheets.Result{}, f.err
	}
	if f.status == http.StatusOK {
		f.stored[id] = m
	}
	return sheets.Result{Status: f.status, Body: map[string]any{"ok": true}}, nil
}

type fakeHost struct {
	configured bool
	siteName   string
	deployedTo string
	archive    []byte
	status     int
}

func (f *fakeHost) Configured() bool { return f.configured }

func (f *fakeHost) CreateSite(ctx context.Context, name string) (*netlify.Site, error) {
	if !f.configured {
		return nil, netlify.ErrNotConfigured
	}
	f.siteName = name
	return &netlify.Site{
		ID:       "site-1",
		Name:     name,
		URL:      "http://" + name + ".netlify.app",
		SSLURL:   "https://" + name + ".netlify.app",
		AdminURL: "https://app.netlify.com/sites/" + name,
	}, nil
}

func (f *fakeHost) Deploy(ctx context.Context, siteID string, zip []byte) (netlify.Response, error) {
	if !f.configured {
		return netlify.Response{}, netlify.ErrNotConfigured
	}
	f.deployedTo = siteID
	f.archive = zip
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return netlify.Response{Status: status, Body: map[string]any{"id": "deploy-1"}}, nil
}

type fakeLinker struct {
	domain string
	target string
	err    error
}

func (f *fakeLinker) Enabled() bool { return true }

func (f *fakeLinker) Link(ctx context.Context, domain, siteURL string) (*dns.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.domain = domain
	f.target = siteURL
	return &dns.Record{ID: "rec-1", Name: domain, Type: "CNAME"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func testProjects() fakeProjects {
	return fakeProjects{
		7: {ID: 7, Name: "Test", TemplateID: templates.ShopDemo, Domain: "shop.example.com"},
		8: {ID: 8, Name: "Plain", TemplateID: templates.LandingClean},
		9: {ID: 9, Name: "Odd", TemplateID: "retro-wave"},
	}
}

func TestPublish_RendersProjectTemplate(t *testing.T) {
	p := NewPipeline(testProjects(), newFakeMappings(), &fakeHost{}, nil, "shifttime", testLogger())

	pub, err := p.Publish(context.Background(), 7)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if pub.Template != "shop" {
		t.Errorf("Expected shop layout, got %s", pub.Template)
	}
	if len(pub.Files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(pub.Files))
	}
	if pub.Files[0].Path != templates.IndexPath {
		t.Errorf("Expected index.html first, got %s", pub.Files[0].Path)
	}
	if !strings.Contains(pub.Files[0].Content, "Test") || !strings.Contains(pub.Files[0].Content, "— магазин") {
		t.Errorf("Index does not carry project name and shop title: %s", pub.Files[0].Content)
	}
}

func TestPublish_UnknownTemplateFallsBack(t *testing.T) {
	p := NewPipeline(testProjects(), newFakeMappings(), &fakeHost{}, nil, "shifttime", testLogger())

	pub, err := p.Publish(context.Background(), 9)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if pub.Template != "landing" {
		t.Errorf("Expected landing fallback, got %s", pub.Template)
	}
}

func TestPublish_MultiByteTemplateIDFallsBack(t *testing.T) {
	metrics.Init()

	projects := fakeProjects{
		12: {ID: 12, Name: "Кав'ярня", TemplateID: "a" + strings.Repeat("ш", 40)},
	}
	p := NewPipeline(projects, newFakeMappings(), &fakeHost{}, nil, "shifttime", testLogger())

	pub, err := p.Publish(context.Background(), 12)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if pub.Template != "landing" {
		t.Errorf("Expected landing fallback, got %s", pub.Template)
	}
	if len(pub.Files) != 3 {
		t.Errorf("Expected 3 files, got %d", len(pub.Files))
	}
}

func TestPublish_UnknownProject(t *testing.T) {
	p := NewPipeline(testProjects(), newFakeMappings(), &fakeHost{}, nil, "shifttime", testLogger())

	if _, err := p.Publish(context.Background(), 404); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeploy_NoSiteLinked(t *testing.T) {
	host := &fakeHost{configured: true}
	p := NewPipeline(testProjects(), newFakeMappings(), host, nil, "shifttime", testLogger())

	_, err := p.Deploy(context.Background(), 7, "")
	if !errors.Is(err, ErrSiteNotLinked) {
		t.Fatalf("Expected ErrSiteNotLinked, got %v", err)
	}
	if err.Error() != "siteId not linked" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if host.deployedTo != "" {
		t.Error("Nothing should be uploaded without a site id")
	}
}

func TestDeploy_ExplicitSiteID(t *testing.T) {
	host := &fakeHost{configured: true}
	p := NewPipeline(testProjects(), newFakeMappings(), host, nil, "shifttime", testLogger())

	result, err := p.Deploy(context.Background(), 8, "explicit-site")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if host.deployedTo != "explicit-site" || result.SiteID != "explicit-site" {
		t.Errorf("Expected upload to explicit-site, got %s", host.deployedTo)
	}
	if result.Status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.Status)
	}

	files, err := archive.Unpack(host.archive)
	if err != nil {
		t.Fatalf("Uploaded body is not a zip: %v", err)
	}
	if len(files) != 3 || files[0].Path != templates.IndexPath {
		t.Errorf("Unexpected archive contents %v", files)
	}
}

func TestDeploy_UsesMapping(t *testing.T) {
	mappings := newFakeMappings()
	mappings.stored[7] = kv.SiteMapping{SiteID: "mapped-site", URL: "https://x.netlify.app", Name: "x"}
	host := &fakeHost{configured: true}
	p := NewPipeline(testProjects(), mappings, host, nil, "shifttime", testLogger())

	if _, err := p.Deploy(context.Background(), 7, ""); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if host.deployedTo != "mapped-site" {
		t.Errorf("Expected upload to mapped-site, got %s", host.deployedTo)
	}
}

func TestDeploy_PassesThroughProviderStatus(t *testing.T) {
	host := &fakeHost{configured: true, status: http.StatusUnprocessableEntity}
	p := NewPipeline(testProjects(), newFakeMappings(), host, nil, "shifttime", testLogger())

	result, err := p.Deploy(context.Background(), 7, "site-1")
	if err != nil {
		t.Fatalf("Provider status should not be an error: %v", err)
	}
	if result.Status != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 pass-through, got %d", result.Status)
	}
}

func TestDeploy_MappingLookupFails(t *testing.T) {
	mappings := newFakeMappings()
	mappings.err = errors.New("sheets down")
	p := NewPipeline(testProjects(), mappings, &fakeHost{configured: true}, nil, "shifttime", testLogger())

	if _, err := p.Deploy(context.Background(), 7, ""); err == nil || errors.Is(err, ErrSiteNotLinked) {
		t.Errorf("Expected lookup error, got %v", err)
	}
}

func TestProvisionSite(t *testing.T) {
	mappings := newFakeMappings()
	host := &fakeHost{configured: true}
	p := NewPipeline(testProjects(), mappings, host, nil, "shifttime", testLogger())

	result, err := p.ProvisionSite(context.Background(), 8, "")
	if err != nil {
		t.Fatalf("ProvisionSite failed: %v", err)
	}

	if !strings.HasPrefix(host.siteName, "shifttime-8-") {
		t.Errorf("Expected default prefix, got %s", host.siteName)
	}
	if !result.Mapped {
		t.Error("Expected mapping to be stored")
	}
	stored, ok := mappings.stored[8]
	if !ok || stored.SiteID != "site-1" || !strings.HasPrefix(stored.URL, "https://") {
		t.Errorf("Unexpected stored mapping %+v", stored)
	}
	if result.DNS != nil {
		t.Error("No DNS record expected without a linker")
	}
}

func TestProvisionSite_CustomPrefix(t *testing.T) {
	host := &fakeHost{configured: true}
	p := NewPipeline(testProjects(), newFakeMappings(), host, nil, "shifttime", testLogger())

	if _, err := p.ProvisionSite(context.Background(), 8, "My Shop"); err != nil {
		t.Fatalf("ProvisionSite failed: %v", err)
	}
	if !strings.HasPrefix(host.siteName, "my-shop-") {
		t.Errorf("Expected sanitized custom prefix, got %s", host.siteName)
	}
}

func TestProvisionSite_Errors(t *testing.T) {
	p := NewPipeline(testProjects(), newFakeMappings(), &fakeHost{}, nil, "shifttime", testLogger())

	if _, err := p.ProvisionSite(context.Background(), 0, ""); !errors.Is(err, ErrMissingField) {
		t.Errorf("Expected ErrMissingField, got %v", err)
	}
	if _, err := p.ProvisionSite(context.Background(), 8, ""); !errors.Is(err, netlify.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestProvisionSite_MappingRejected(t *testing.T) {
	mappings := newFakeMappings()
	mappings.status = http.StatusInternalServerError
	p := NewPipeline(testProjects(), mappings, &fakeHost{configured: true}, nil, "shifttime", testLogger())

	result, err := p.ProvisionSite(context.Background(), 8, "")
	if err != nil {
		t.Fatalf("Mapping failure should not fail provisioning: %v", err)
	}
	if result.Mapped {
		t.Error("Expected Mapped=false when the store rejects the write")
	}
}

func TestProvisionSite_LinksDomain(t *testing.T) {
	linker := &fakeLinker{}
	p := NewPipeline(testProjects(), newFakeMappings(), &fakeHost{configured: true}, linker, "shifttime", testLogger())

	result, err := p.ProvisionSite(context.Background(), 7, "demo")
	if err != nil {
		t.Fatalf("ProvisionSite failed: %v", err)
	}
	if linker.domain != "shop.example.com" || linker.target != result.URL {
		t.Errorf("Unexpected link %s -> %s", linker.domain, linker.target)
	}
	if result.DNS == nil || result.DNS.ID != "rec-1" {
		t.Errorf("Expected DNS record in result, got %+v", result.DNS)
	}

	// Projects without a domain are left alone
	linker.domain = ""
	if _, err := p.ProvisionSite(context.Background(), 8, ""); err != nil {
		t.Fatalf("ProvisionSite failed: %v", err)
	}
	if linker.domain != "" {
		t.Error("Linker should not run for a project without domain")
	}
}

func TestProvisionSite_LinkFailureReported(t *testing.T) {
	linker := &fakeLinker{err: errors.New("record already exists")}
	p := NewPipeline(testProjects(), newFakeMappings(), &fakeHost{configured: true}, linker, "shifttime", testLogger())

	result, err := p.ProvisionSite(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Link failure should not fail provisioning: %v", err)
	}
	if result.DNSError == "" {
		t.Error("Expected DNS error in result")
	}
}
