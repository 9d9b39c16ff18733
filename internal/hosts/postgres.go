package hosts

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// outboundHost is a row of the outbound_hosts table. Columns are nullable
// so that an incomplete row surfaces as a malformed entry instead of an
// empty identity.
type outboundHost struct {
	Domain string  `gorm:"column:domain;primaryKey"`
	Helo   *string `gorm:"column:helo"`
	IP     *string `gorm:"column:ip"`
}

func (outboundHost) TableName() string {
	return "outbound_hosts"
}

// Postgres serves the mapping from a database table managed by the
// administration side, one row per domain plus an optional 'default' row.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(uri string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Load(ctx context.Context) (Hosts, error) {
	var rows []outboundHost
	if err := p.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (p *Postgres) String() string {
	return "postgres:" + outboundHost{}.TableName()
}

// fromRows builds the mapping. Domains that differ only in case are
// rejected, as in the file source.
func fromRows(rows []outboundHost) (Hosts, error) {
	hosts := make(Hosts, len(rows))
	seen := make(map[string]string, len(rows))
	for _, row := range rows {
		key := normalizeKey(row.Domain)
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("%q and %q are the same domain", other, row.Domain)
		}
		seen[key] = row.Domain
		raw := renderJSON(map[string]*string{"helo": row.Helo, "ip": row.IP}, "")
		hosts[key] = newEntry(row.Helo, row.IP, raw)
	}
	return hosts, nil
}
