package store

type Repository interface {
	Ping() error
	GetUser(id string) (User, error)
	GetGroup(id string) (Group, error)
	IsMember(userId, groupId string) bool
	CreateMessage(params CreateMessageParams) (Message, error)
	ListMessages(groupId string) ([]Message, error)
}
