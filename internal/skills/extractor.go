// Package skills tags resolved jobs with canonical skill names found in
// their listing text.
package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobsignal/engine/internal/jobs"
)

// dictionary holds the canonical lowercase skill vocabulary. Matching
// is dictionary lookup only, deterministic and debuggable; anything
// fancier belongs in a separate analytics pipeline.
var dictionary = []string{
	// JVM
	"java", "kotlin", "scala",
	// Frameworks
	"spring", "spring boot", "spring mvc", "spring security", "hibernate",
	"micronaut", "quarkus",
	// Frontend
	"react", "angular", "vue", "javascript", "typescript", "html", "css",
	// Backend
	"node.js", "express", "django", "flask", "fastapi",
	// Databases
	"postgresql", "mysql", "mongodb", "redis", "elasticsearch",
	"cassandra", "oracle",
	// Cloud and infra
	"aws", "gcp", "azure", "docker", "kubernetes", "jenkins",
	"terraform", "ansible", "linux",
	// Data
	"python", "spark", "kafka", "airflow", "pandas", "sql",
	// Tools
	"git", "maven", "gradle", "jira", "rest api", "graphql",
	"microservices", "rabbitmq",
}

// Extractor scans job text for dictionary skills and attaches them.
type Extractor struct {
	store  jobs.Store
	logger *zap.Logger
}

// New constructs an Extractor.
func New(store jobs.Store, logger *zap.Logger) *Extractor {
	return &Extractor{store: store, logger: logger}
}

// ExtractAndAttach scans the text, lazily creates Skill rows for hits,
// and links them to the job. Re-running over the same text is a no-op:
// the (job, skill) pair is unique and duplicate links are swallowed.
// Only call this with text belonging to a resolved job.
func (e *Extractor) ExtractAndAttach(ctx context.Context, job jobs.Job, text string) ([]jobs.Skill, error) {
	if strings.TrimSpace(text) == "" {
		e.logger.Debug("no text for skill extraction", zap.Int64("job_id", job.ID))
		return nil, nil
	}
	lower := strings.ToLower(text)

	var attached []jobs.Skill
	err := e.store.RunInTx(ctx, func(tx jobs.Store) error {
		for _, name := range dictionary {
			if !containsSkill(lower, name) {
				continue
			}
			skill, err := e.resolveSkill(ctx, tx, name)
			if err != nil {
				return err
			}
			switch err := tx.AttachSkill(ctx, job.ID, skill.ID); {
			case err == nil:
				attached = append(attached, skill)
			case errors.Is(err, jobs.ErrDuplicate):
				// Already linked on a prior sighting.
			default:
				return fmt.Errorf("attach skill %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(attached) > 0 {
		e.logger.Info("skills attached",
			zap.Int64("job_id", job.ID),
			zap.Int("count", len(attached)),
		)
	}
	return attached, nil
}

func (e *Extractor) resolveSkill(ctx context.Context, tx jobs.Store, name string) (jobs.Skill, error) {
	skill, err := tx.SkillByName(ctx, name)
	if err == nil {
		return skill, nil
	}
	if !errors.Is(err, jobs.ErrNotFound) {
		return jobs.Skill{}, fmt.Errorf("lookup skill %q: %w", name, err)
	}

	skill, err = tx.CreateSkill(ctx, name)
	if errors.Is(err, jobs.ErrDuplicate) {
		return tx.SkillByName(ctx, name)
	}
	if err != nil {
		return jobs.Skill{}, fmt.Errorf("create skill %q: %w", name, err)
	}
	e.logger.Debug("new skill registered", zap.String("skill", name))
	return skill, nil
}

// containsSkill reports whether the skill appears as a whole unit.
// Single words get boundary checks so "java" never fires on
// "javascript"; multi-word phrases carry their own boundaries.
func containsSkill(text, skill string) bool {
	if !strings.Contains(skill, " ") {
		return strings.Contains(text, " "+skill+" ") ||
			strings.HasPrefix(text, skill+" ") ||
			strings.HasSuffix(text, " "+skill) ||
			text == skill
	}
	return strings.Contains(text, skill)
}
