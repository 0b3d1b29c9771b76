package store

func (db *PgRepository) GetUser(id string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, first_name, last_name, email FROM users "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.FirstName,
		&user.LastName,
		&user.Email,
	)

	return user, err
}

func (db *PgRepository) GetGroup(id string) (Group, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, created_at FROM groups "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var group Group
	err := row.Scan(
		&group.Id,
		&group.Name,
		&group.CreatedAt,
	)

	return group, err
}

func (db *PgRepository) IsMember(userId, groupId string) bool {
	row := db.conn.QueryRow(
		"SELECT 1 FROM group_members WHERE user_id = $1 AND group_id = $2 LIMIT 1",
		userId,
		groupId,
	)

	var one int
	err := row.Scan(&one)

	return err == nil
}

func (db *PgRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (group_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, group_id, sender_id, content, created_at",
		params.GroupId,
		params.SenderId,
		params.Content,
		params.CreatedAt,
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.GroupId,
		&msg.SenderId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgRepository) ListMessages(groupId string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT m.id, m.group_id, m.sender_id, m.content, m.created_at, u.first_name, u.last_name "+
			"FROM messages m JOIN users u ON m.sender_id = u.id "+
			"WHERE m.group_id = $1 ORDER BY m.created_at ASC",
		groupId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.GroupId, &msg.SenderId, &msg.Content, &msg.CreatedAt,
			&msg.FirstName, &msg.LastName); err != nil {
			break
		}

		messages = append(messages, msg)
	}
	return messages, err
}
