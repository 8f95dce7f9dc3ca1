// Package content holds the portfolio copy: profile, skills, projects and
// links rendered by the page templates.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

// Sections are the element ids the page renders; navigation anchors must
// point at one of them.
var Sections = []string{"home", "about", "skills", "projects", "contact"}

// Profile is the hero banner: name, typewriter roles and intro.
type Profile struct {
	Name    string   `yaml:"name"`
	Roles   []string `yaml:"roles"`
	Tagline string   `yaml:"tagline"`
	Intro   string   `yaml:"intro"`
	Resume  string   `yaml:"resume,omitempty"`
}

// Project is one showcase card. Inactive projects render as "Coming soon"
// with their links disabled.
type Project struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Demo        string   `yaml:"demo,omitempty"`
	Code        string   `yaml:"code,omitempty"`
	Image       string   `yaml:"image,omitempty"`
	Active      bool     `yaml:"active"`
}

// ContactInfo is shown next to the contact form.
type ContactInfo struct {
	Blurb string `yaml:"blurb"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// Social is a profile link. A social with a Note and no URL shows the note
// instead of navigating.
type Social struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url,omitempty"`
	Note string `yaml:"note,omitempty"`
}

// NavLink is a header entry; Href is an anchor such as "#about".
type NavLink struct {
	Name string `yaml:"name"`
	Href string `yaml:"href"`
}

// Content is everything the page shows besides the contact form state.
type Content struct {
	Profile      Profile     `yaml:"profile"`
	About        string      `yaml:"about"`
	Skills       []string    `yaml:"skills"`
	Projects     []Project   `yaml:"projects"`
	MoreProjects string      `yaml:"more_projects,omitempty"`
	Contact      ContactInfo `yaml:"contact"`
	Socials      []Social    `yaml:"socials"`
	Nav          []NavLink   `yaml:"nav"`
}

// Default returns the built in content.
func Default() (*Content, error) {
	return Parse(defaultContent)
}

// Load reads content from path, or the built in content when path is empty.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML content.
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants the templates rely on.
func (c *Content) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Profile.Name) == "" {
		errs = append(errs, errors.New("profile name is empty"))
	}
	for _, link := range c.Nav {
		if !IsSection(link.Href) {
			errs = append(errs, fmt.Errorf("nav link %q points at unknown section %q", link.Name, link.Href))
		}
	}
	for i, p := range c.Projects {
		if strings.TrimSpace(p.Title) == "" {
			errs = append(errs, fmt.Errorf("project %d has no title", i))
		}
	}
	for _, s := range c.Socials {
		if s.URL == "" && s.Note == "" {
			errs = append(errs, fmt.Errorf("social %q needs a url or a note", s.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid content: %w", err)
	}
	return nil
}

// Marshal encodes the content back to YAML.
func (c *Content) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// IsSection reports whether href is an anchor to a rendered section.
func IsSection(href string) bool {
	id, ok := strings.CutPrefix(href, "#")
	if !ok {
		return false
	}
	for _, s := range Sections {
		if s == id {
			return true
		}
	}
	return false
}
