package service

import (
	"errors"

	"github.com/patric-chuzhbe/regform/internal/models"
	"github.com/patric-chuzhbe/regform/internal/validation"
)

// User-facing messages. They are part of the HTTP and gRPC contract.
const (
	MessageAccountCreated   = "🎉 Аккаунт успешно создан! Добро пожаловать!"
	MessageRegistered       = "Регистрация прошла успешно!"
	MessageServerError      = "Произошла ошибка на сервере. Попробуйте позже."
	MessageUsersUnavailable = "Ошибка при получении данных пользователей"
	MessageMalformedRequest = "Некорректный формат запроса"
	MessageServerOK         = "Сервер работает корректно!"
	MessageMissingFields    = "Заполните все обязательные поля"
	MessagePasswordMismatch = "Пароли не совпадают"
	MessagePasswordTooShort = "Пароль должен содержать не менее 6 символов"
	MessageInvalidEmail     = "Введите корректный email адрес"
	MessageUsernameTooShort = "Имя пользователя должно содержать не менее 3 символов"
	MessageUsernameTaken    = "Пользователь с таким именем уже существует"
	MessageEmailTaken       = "Пользователь с таким email уже зарегистрирован"
	MessageUsernameRequired = "Введите имя пользователя"
	MessageFormInvalidEmail = "Введите корректный email"
)

type messageRule struct {
	target  error
	message string
}

var registrationMessages = []messageRule{
	{validation.ErrMissingFields, MessageMissingFields},
	{validation.ErrPasswordMismatch, MessagePasswordMismatch},
	{validation.ErrPasswordTooShort, MessagePasswordTooShort},
	{validation.ErrInvalidEmail, MessageInvalidEmail},
	{validation.ErrUsernameTooShort, MessageUsernameTooShort},
	{ErrUsernameTaken, MessageUsernameTaken},
	{ErrEmailTaken, MessageEmailTaken},
}

var formMessages = []messageRule{
	{validation.ErrUsernameRequired, MessageUsernameRequired},
	{validation.ErrInvalidEmail, MessageFormInvalidEmail},
	{validation.ErrPasswordTooShort, MessagePasswordTooShort},
}

func lookup(rules []messageRule, err error) string {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			return rule.message
		}
	}
	return MessageServerError
}

// Message returns the text shown to the user for an error returned by Register.
// Unknown errors map to MessageServerError.
func Message(err error) string {
	return lookup(registrationMessages, err)
}

// FormMessage returns the text shown to the user for an error returned by CheckForm.
func FormMessage(err error) string {
	return lookup(formMessages, err)
}

// SuccessMessage returns the text confirming a registration under schema.
func (s *Service) SuccessMessage() string {
	if s.schema == models.SchemaContact {
		return MessageRegistered
	}
	return MessageAccountCreated
}
