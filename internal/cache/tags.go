package cache

// Kind names an entity kind in cache tags.
type Kind string

const (
	Users      Kind = "users"
	JobInfos   Kind = "jobInfos"
	Questions  Kind = "questions"
	Interviews Kind = "interviews"
)

// Tag identifies an invalidation scope.
type Tag string

// GlobalTag covers every row of kind.
func GlobalTag(kind Kind) Tag {
	return Tag("global:" + string(kind))
}

// UserTag covers the rows of kind owned directly by userID.
func UserTag(kind Kind, userID string) Tag {
	return Tag("user:" + userID + ":" + string(kind))
}

// JobInfoTag covers the rows of kind that belong to one job info.
func JobInfoTag(kind Kind, jobInfoID string) Tag {
	return Tag("jobInfo:" + jobInfoID + ":" + string(kind))
}

// IDTag covers a single row.
func IDTag(kind Kind, id string) Tag {
	return Tag("id:" + id + ":" + string(kind))
}
