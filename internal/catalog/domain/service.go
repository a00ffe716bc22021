package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListDomains(ctx context.Context) ([]Domain, error)
	GetDomain(ctx context.Context, id snowflake.ID) (Domain, error)
	ResolveDomainKey(ctx context.Context, raw string) (Domain, error)
	ListTemplates(ctx context.Context, domainKey string) ([]TaskTemplate, error)
	GetTemplate(ctx context.Context, id snowflake.ID) (TaskTemplate, error)
}

var (
	ErrDomainNotFound   = errors.New("domain_not_found")
	ErrTemplateNotFound = errors.New("template_not_found")
	ErrInvalidDomainKey = errors.New("invalid_domain_key")
)
