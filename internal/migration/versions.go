package migration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// embeddedVersions 解析嵌入的迁移文件名，返回去重升序的版本列表。
func embeddedVersions() ([]uint, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	seen := make(map[uint]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		idx := strings.Index(name, "_")
		if idx <= 0 {
			continue
		}
		v, err := strconv.ParseUint(name[:idx], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid migration filename %q: %w", name, err)
		}
		seen[uint(v)] = struct{}{}
	}

	versions := make([]uint, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
