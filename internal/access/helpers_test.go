package access

func newIdentity(id, classID string, roles ...Role) Identity {
	identity := Identity{ID: id, DisplayName: id, ClassID: classID}
	identity.Roles = append(identity.Roles, RoleAssignment{Role: RoleStudent})
	for _, r := range roles {
		a, err := AssignmentFor(identity, r)
		if err != nil {
			panic(err)
		}
		identity.Roles = append(identity.Roles, a)
	}
	return identity
}

func classItem(kind Kind, author, classID string) Item {
	return Item{ID: "item-" + classID, Kind: kind, AuthorID: author, Scope: ClassScoped(classID)}
}

func schoolItem(kind Kind, author string) Item {
	return Item{ID: "item-school", Kind: kind, AuthorID: author, Scope: SchoolWide()}
}
