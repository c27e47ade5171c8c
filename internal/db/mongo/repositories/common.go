// Package repositories contains MongoDB repository implementations.
package repositories

import "go.mongodb.org/mongo-driver/v2/bson"

// cmdSet - See https://www.mongodb.com/docs/manual/reference/operator/update/set/
func cmdSet(i any) bson.E {
	return bson.E{
		Key:   "$set",
		Value: i,
	}
}

// cmdMatch - See https://www.mongodb.com/docs/manual/reference/operator/aggregation/match/
func cmdMatch(i any) bson.E {
	return bson.E{
		Key:   "$match",
		Value: i,
	}
}

// cmdGroup - See https://www.mongodb.com/docs/manual/reference/operator/aggregation/group/
func cmdGroup(i any) bson.E {
	return bson.E{
		Key:   "$group",
		Value: i,
	}
}

// cmdProject - See https://www.mongodb.com/docs/manual/reference/operator/aggregation/project/
func cmdProject(i any) bson.E {
	return bson.E{
		Key:   "$project",
		Value: i,
	}
}

// cmdSort - See https://www.mongodb.com/docs/manual/reference/operator/aggregation/sort/
func cmdSort(i any) bson.E {
	return bson.E{
		Key:   "$sort",
		Value: i,
	}
}

// cmdLimit - See https://www.mongodb.com/docs/manual/reference/operator/aggregation/limit/
func cmdLimit(i any) bson.E {
	return bson.E{
		Key:   "$limit",
		Value: i,
	}
}

// cmdLookup - See https://www.mongodb.com/docs/manual/reference/operator/aggregation/lookup/
func cmdLookup(i any) bson.E {
	return bson.E{
		Key:   "$lookup",
		Value: i,
	}
}
