package syncer

import (
	"sort"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

// operationRank orders a drain so creates land before the updates that
// reference them and deletes come last.
var operationRank = map[models.Operation]int{
	models.OperationCreate: 0,
	models.OperationUpdate: 1,
	models.OperationDelete: 2,
}

// typeRanker assigns drain priority per entity type from a configured
// list. Types not in the list sort after all listed ones.
type typeRanker map[models.EntityType]int

func newTypeRanker(priority []string) typeRanker {
	ranks := make(typeRanker, len(priority))
	for i, name := range priority {
		ranks[models.EntityType(name)] = i
	}
	return ranks
}

func (r typeRanker) rank(entityType models.EntityType) int {
	if rank, ok := r[entityType]; ok {
		return rank
	}
	return len(r)
}

// orderChanges sorts a drain batch by entity-type priority, then by
// operation (create, update, delete), then oldest first.
func orderChanges(changes []models.PendingChange, ranks typeRanker) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if ra, rb := ranks.rank(a.EntityType), ranks.rank(b.EntityType); ra != rb {
			return ra < rb
		}
		if oa, ob := operationRank[a.Operation], operationRank[b.Operation]; oa != ob {
			return oa < ob
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ID < b.ID
	})
}
