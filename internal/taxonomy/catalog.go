package taxonomy

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Client is the slice of the backend API the catalog needs. Implemented by
// api.Client.
type Client interface {
	ListSubjects(ctx context.Context) ([]Entity, error)
	ListGradeLevels(ctx context.Context) ([]Entity, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListBloomLevels(ctx context.Context) ([]BloomLevel, error)
	ListPatterns(ctx context.Context) ([]Pattern, error)
}

// Catalog bundles the five taxonomy repositories. Loads run concurrently
// and independently: one slow or failing list never stalls or corrupts the
// others.
type Catalog struct {
	Subjects    *Repository[Entity]
	Grades      *Repository[Entity]
	Categories  *Repository[Category]
	BloomLevels *Repository[BloomLevel]
	Patterns    *Repository[Pattern]

	mu     sync.RWMutex
	client Client
}

// NewCatalog creates an empty catalog backed by client.
func NewCatalog(client Client) *Catalog {
	return &Catalog{
		client:      client,
		Subjects:    NewRepository[Entity]("subjects"),
		Grades:      NewRepository[Entity]("grade-levels"),
		Categories:  NewRepository[Category]("ilo-categories"),
		BloomLevels: NewRepository[BloomLevel]("bloom-levels"),
		Patterns:    NewRepository[Pattern]("ilo-patterns"),
	}
}

func (c *Catalog) setClient(client Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

func (c *Catalog) getClient() Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// LoadAll fetches all five collections concurrently. Individual failures
// degrade that repository to an empty list; LoadAll itself only returns an
// error when the context is cancelled before the loads finish.
func (c *Catalog) LoadAll(ctx context.Context) error {
	client := c.getClient()
	if client == nil {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Subjects.Load(gctx, client.ListSubjects)
		return nil
	})
	g.Go(func() error {
		c.Grades.Load(gctx, client.ListGradeLevels)
		return nil
	})
	g.Go(func() error {
		c.Categories.Load(gctx, client.ListCategories)
		return nil
	})
	g.Go(func() error {
		c.BloomLevels.Load(gctx, client.ListBloomLevels)
		return nil
	})
	g.Go(func() error {
		c.Patterns.Load(gctx, client.ListPatterns)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Rebase switches the catalog to a new backend client and invalidates all
// repositories so in-flight loads from the old backend are discarded on
// arrival. The caller is expected to follow up with LoadAll.
func (c *Catalog) Rebase(client Client) {
	c.setClient(client)
	c.Subjects.Invalidate()
	c.Grades.Invalidate()
	c.Categories.Invalidate()
	c.BloomLevels.Invalidate()
	c.Patterns.Invalidate()
}

// SubjectByID returns the subject with the given id, or nil.
func (c *Catalog) SubjectByID(id int) *Entity {
	return entityByID(c.Subjects.Items(), id)
}

// GradeByID returns the grade level with the given id, or nil.
func (c *Catalog) GradeByID(id int) *Entity {
	return entityByID(c.Grades.Items(), id)
}

// CategoryByID returns the category with the given id, or nil.
func (c *Catalog) CategoryByID(id int) *Category {
	items := c.Categories.Items()
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

// BloomLevelByID returns the Bloom level with the given id, or nil.
func (c *Catalog) BloomLevelByID(id int) *BloomLevel {
	items := c.BloomLevels.Items()
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func entityByID(items []Entity, id int) *Entity {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
