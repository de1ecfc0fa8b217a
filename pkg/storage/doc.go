/*
Package storage persists forkful's records in a bbolt database.

BoltStore keeps one bucket per collection and stores values as JSON.
Secondary lookups use their own buckets:

	Bucket         Key                       Value
	─────────────  ────────────────────────  ───────────────
	users          user ID                   User
	usernames      lowercased username       user ID
	recipes        recipe ID                 Recipe
	ratings        recipeID/userID           Rating
	comments       recipeID/commentID        Comment
	follows        followerID/followeeID     Follow
	followers      followeeID/followerID     Follow
	messages       message ID                Message (sealed)
	notifications  userID/notificationID     Notification

Missing records return ErrNotFound and a taken username returns
ErrConflict. Backup writes a consistent snapshot of the whole file.
*/
package storage
