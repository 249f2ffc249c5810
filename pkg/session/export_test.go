package session

// NewSessionAt builds a session with a fixed id and creation time.
var NewSessionAt = newSessionAt

// CollectionName reports the collection a MongoStore writes to.
func CollectionName(s *MongoStore) string { return s.collection.Name() }
