package api

import (
	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/types"
)

func toUserProfile(u database.User) types.User {
	profile := types.User{
		Id:             u.Id,
		Username:       u.Username,
		Email:          u.EmailAddress,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Gender:         u.Gender,
		ProfilePicture: u.ProfilePicture,
		BannerImage:    u.BannerImage,
		Bio:            u.Bio,
		Balance:        u.Balance,
		Role:           types.RoleFromPlan(u.PlanName.String),
		IsCreator:      u.IsCreator,
		IsAdmin:        u.IsAdmin,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
	}

	if !u.BirthDate.IsZero() {
		profile.BirthDate = u.BirthDate.Format(types.DateLayout)
	}
	if u.LastLogin.Valid {
		lastLogin := u.LastLogin.Time
		profile.LastLogin = &lastLogin
	}

	return profile
}

func toChannel(c database.Channel) types.Channel {
	channel := types.Channel{
		Id:              c.Id,
		Name:            c.Name,
		Type:            c.Type,
		CreatorUsername: c.CreatorUsername.String,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
	}

	if c.CreatedBy.Valid {
		createdBy := int(c.CreatedBy.Int64)
		channel.CreatedBy = &createdBy
	}

	return channel
}

func toChannels(dbChannels []database.Channel) []types.Channel {
	channels := make([]types.Channel, 0, len(dbChannels))
	for _, c := range dbChannels {
		channels = append(channels, toChannel(c))
	}
	return channels
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:          m.Id,
		ChatId:      m.ChannelId,
		UserId:      m.UserId,
		Text:        m.Content,
		ContentType: m.ContentType,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
		User: types.Author{
			Id:             m.Author.Id,
			Username:       m.Author.Username,
			ProfilePicture: m.Author.ProfilePicture,
			Role:           types.RoleFromPlan(m.Author.PlanName.String),
			IsCreator:      m.Author.IsCreator,
			IsAdmin:        m.Author.IsAdmin,
		},
	}
}

func toOnlineUser(u database.OnlineUser) types.OnlineUser {
	entry := types.OnlineUser{
		Id:             u.Id,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Gender:         u.Gender,
		Role:           types.RoleFromPlan(u.PlanName.String),
		IsCreator:      u.IsCreator,
		IsAdmin:        u.IsAdmin,
	}

	if !u.BirthDate.IsZero() {
		entry.BirthDate = u.BirthDate.Format(types.DateLayout)
	}

	return entry
}
