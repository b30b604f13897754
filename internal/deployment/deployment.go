// Package deployment runs the publish pipeline: a project is fetched from
// the data store, its template is materialized into files, the files are
// packed into a ZIP and the archive is uploaded to the project's hosting
// site. Site ids are resolved from the key-value side store when the caller
// does not supply one.
//
// Nothing here takes a lock. Two concurrent requests for the same project
// may interleave their mapping reads and writes.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shifttime/internal/dns"
	"shifttime/internal/kv"
	"shifttime/internal/metrics"
	"shifttime/internal/netlify"
	"shifttime/internal/project"
	"shifttime/internal/sheets"
	"shifttime/pkg/archive"
	"shifttime/pkg/templates"
)

// Deploy outcomes recorded in metrics
const (
	OutcomeUploaded  = "uploaded"
	OutcomeRejected  = "rejected"
	OutcomeNotLinked = "not_linked"
	OutcomeFailed    = "failed"
)

var (
	// ErrSiteNotLinked means no site id was given and no mapping exists
	ErrSiteNotLinked = errors.New("siteId not linked")

	// ErrMissingField means a required request field was absent
	ErrMissingField = errors.New("missing required field")
)

// Projects finds projects by id
type Projects interface {
	Find(ctx context.Context, id int64) (*project.Project, error)
}

// Mappings reads and writes project to site mappings
type Mappings interface {
	GetSiteMapping(ctx context.Context, projectID int64) (*kv.SiteMapping, error)
	PutSiteMapping(ctx context.Context, projectID int64, mapping kv.SiteMapping) (sheets.Result, error)
}

// Host provisions sites and accepts deploys
type Host interface {
	Configured() bool
	CreateSite(ctx context.Context, name string) (*netlify.Site, error)
	Deploy(ctx context.Context, siteID string, zip []byte) (netlify.Response, error)
}

// DomainLinker points a custom domain at a site
type DomainLinker interface {
	Enabled() bool
	Link(ctx context.Context, domain, siteURL string) (*dns.Record, error)
}

// Pipeline wires the data store, the materializer and the hosting provider
type Pipeline struct {
	projects   Projects
	mappings   Mappings
	host       Host
	linker     DomainLinker
	sitePrefix string
	logger     *slog.Logger
}

// NewPipeline creates a pipeline. linker may be nil.
func NewPipeline(projects Projects, mappings Mappings, host Host, linker DomainLinker, sitePrefix string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		projects:   projects,
		mappings:   mappings,
		host:       host,
		linker:     linker,
		sitePrefix: sitePrefix,
		logger:     logger,
	}
}

// Publication is a project together with its materialized files
type Publication struct {
	Project  *project.Project `json:"project"`
	Template string           `json:"template"`
	Files    []templates.File `json:"files"`
}

// Publish fetches the project and renders its files without deploying
func (p *Pipeline) Publish(ctx context.Context, projectID int64) (*Publication, error) {
	proj, err := p.projects.Find(ctx, projectID)
	if err != nil {
		return nil, err
	}

	kind, ok := templates.Resolve(proj.TemplateID)
	if !ok {
		p.logger.Warn("Unknown template, using landing layout",
			"project_id", projectID,
			"template_id", proj.TemplateID,
		)
		metrics.ObserveTemplateFallback(proj.TemplateID)
	}

	files, err := templates.Build(templates.Site{
		Name:       proj.Name,
		Domain:     proj.Domain,
		TemplateID: proj.TemplateID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to materialize project %d: %w", projectID, err)
	}

	return &Publication{Project: proj, Template: kind.String(), Files: files}, nil
}

// DeployResult is the provider's answer to an upload
type DeployResult struct {
	SiteID string
	Status int
	Body   any
}

// Deploy publishes the project and uploads the archive to siteID, or to
// the mapped site when siteID is empty. The provider's status and body are
// returned as they came back.
func (p *Pipeline) Deploy(ctx context.Context, projectID int64, siteID string) (*DeployResult, error) {
	pub, err := p.Publish(ctx, projectID)
	if err != nil {
		metrics.ObserveDeploy(OutcomeFailed)
		return nil, err
	}

	zip, err := archive.Pack(pub.Files)
	if err != nil {
		metrics.ObserveDeploy(OutcomeFailed)
		return nil, fmt.Errorf("failed to pack project %d: %w", projectID, err)
	}

	if siteID == "" {
		mapping, err := p.mappings.GetSiteMapping(ctx, projectID)
		if err != nil {
			metrics.ObserveDeploy(OutcomeFailed)
			return nil, fmt.Errorf("failed to resolve site for project %d: %w", projectID, err)
		}
		if mapping != nil {
			siteID = mapping.SiteID
		}
	}
	if siteID == "" {
		metrics.ObserveDeploy(OutcomeNotLinked)
		return nil, ErrSiteNotLinked
	}

	resp, err := p.host.Deploy(ctx, siteID, zip)
	if err != nil {
		metrics.ObserveDeploy(OutcomeFailed)
		return nil, err
	}

	outcome := OutcomeUploaded
	if resp.Status < 200 || resp.Status >= 300 {
		outcome = OutcomeRejected
		p.logger.Warn("Deploy rejected by provider", "project_id", projectID, "site_id", siteID, "status", resp.Status)
	}
	metrics.ObserveDeploy(outcome)

	return &DeployResult{SiteID: siteID, Status: resp.Status, Body: resp.Body}, nil
}

// SiteResult describes a newly provisioned site
type SiteResult struct {
	SiteID   string      `json:"siteId"`
	URL      string      `json:"url"`
	Name     string      `json:"name"`
	AdminURL string      `json:"adminUrl,omitempty"`
	Mapped   bool        `json:"mapped"`
	DNS      *dns.Record `json:"dns,omitempty"`
	DNSError string      `json:"dnsError,omitempty"`
}

// ProvisionSite creates a hosting site for the project and records the
// mapping. A failed mapping write or domain link does not undo the site;
// both are reported in the result instead.
func (p *Pipeline) ProvisionSite(ctx context.Context, projectID int64, prefix string) (*SiteResult, error) {
	if projectID == 0 {
		return nil, fmt.Errorf("%w: projectId", ErrMissingField)
	}
	if !p.host.Configured() {
		return nil, netlify.ErrNotConfigured
	}

	if prefix == "" {
		base := p.sitePrefix
		if base == "" {
			base = "designer"
		}
		prefix = fmt.Sprintf("%s-%d", base, projectID)
	}

	site, err := p.host.CreateSite(ctx, netlify.SiteName(prefix))
	if err != nil {
		return nil, err
	}

	result := &SiteResult{
		SiteID:   site.ID,
		URL:      site.PublicURL(),
		Name:     site.Name,
		AdminURL: site.AdminURL,
	}

	mapping := kv.SiteMapping{SiteID: site.ID, URL: result.URL, Name: site.Name}
	res, err := p.mappings.PutSiteMapping(ctx, projectID, mapping)
	switch {
	case err != nil:
		p.logger.Error("Failed to store site mapping", "project_id", projectID, "site_id", site.ID, "error", err)
	case !res.OK():
		p.logger.Error("Site mapping rejected by data store", "project_id", projectID, "site_id", site.ID, "status", res.Status)
	default:
		result.Mapped = true
	}

	if p.linker != nil && p.linker.Enabled() {
		p.linkDomain(ctx, projectID, result)
	}

	return result, nil
}

func (p *Pipeline) linkDomain(ctx context.Context, projectID int64, result *SiteResult) {
	proj, err := p.projects.Find(ctx, projectID)
	if err != nil {
		p.logger.Warn("Skipping domain link, project not readable", "project_id", projectID, "error", err)
		result.DNSError = err.Error()
		return
	}
	if proj.Domain == "" {
		return
	}

	record, err := p.linker.Link(ctx, proj.Domain, result.URL)
	if err != nil {
		p.logger.Error("Failed to link domain", "project_id", projectID, "domain", proj.Domain, "error", err)
		result.DNSError = err.Error()
		return
	}
	result.DNS = record
}
