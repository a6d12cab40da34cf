// Package service implements the household use cases. Authorization decisions are
// delegated to the policy engine; this package gathers the facts and applies the result.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/household/domain"
	"swadharma/backend/internal/household/repository"
	"swadharma/backend/internal/platform/sanitize"
	"swadharma/backend/internal/policy/engine"
	"swadharma/backend/internal/security"
	"swadharma/backend/internal/telemetry"
	eventdomain "swadharma/backend/internal/telemetry/domain"
	userdomain "swadharma/backend/internal/user/domain"
)

// UserLookup resolves accounts for invitees and inviters.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*userdomain.User, error)
}

// HouseholdService runs household and invite use cases.
type HouseholdService struct {
	households repository.Repository
	users      UserLookup
	policy     engine.Evaluator
	events     *telemetry.Publisher
	log        *zap.Logger
	appURL     string
	now        func() time.Time
}

// NewHouseholdService returns a HouseholdService. appURL prefixes invite links.
func NewHouseholdService(households repository.Repository, users UserLookup, policy engine.Evaluator, events *telemetry.Publisher, log *zap.Logger, appURL string) *HouseholdService {
	if log == nil {
		log = zap.NewNop()
	}
	return &HouseholdService{
		households: households,
		users:      users,
		policy:     policy,
		events:     events,
		log:        log,
		appURL:     strings.TrimRight(appURL, "/"),
		now:        time.Now,
	}
}

var violationMessages = map[apperr.Code]string{
	apperr.CodeAccessDenied:     "You do not have permission for this household action",
	apperr.CodeAlreadyHead:      "You are already head of a household",
	apperr.CodeUseTransfer:      "Use transfer endpoint to change head",
	apperr.CodeInvalidRole:      "Role must be ADULT or CHILD",
	apperr.CodeCannotRemoveSelf: "Head cannot remove themselves",
	apperr.CodeNotAMember:       "Target user is not a member",
	apperr.CodeCannotBeHead:     "Child members cannot become head",
	apperr.CodeHeadCannotLeave:  "Transfer head role before leaving",
}

func (s *HouseholdService) authorize(ctx context.Context, f engine.Facts) error {
	violation, err := s.policy.Check(ctx, f)
	if err != nil {
		return apperr.Internal(err)
	}
	if violation == "" {
		return nil
	}
	code := apperr.Code(violation)
	msg, ok := violationMessages[code]
	if !ok {
		msg = "Household action not allowed"
	}
	return apperr.New(code, msg)
}

// party describes userID's standing in h.
func party(h *domain.Household, userID string) engine.Party {
	p := engine.Party{ID: userID}
	if m := h.Member(userID); m != nil {
		p.IsMember = true
		p.Role = string(m.Role)
		p.IsHead = m.Role == domain.RoleHead && h.HeadUserID == userID
	}
	return p
}

func (s *HouseholdService) load(ctx context.Context, id string) (*domain.Household, error) {
	h, err := s.households.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if h == nil || h.Status != domain.StatusActive {
		return nil, apperr.New(apperr.CodeHouseholdNotFound, "Household not found")
	}
	return h, nil
}

// AddressInput is the optional address given at creation.
type AddressInput struct {
	Type      string   `json:"type"`
	Label     string   `json:"label"`
	Line1     string   `json:"line1"`
	Line2     string   `json:"line2"`
	Landmark  string   `json:"landmark"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Pincode   string   `json:"pincode"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (a *AddressInput) toDomain() (*domain.Address, error) {
	typ := domain.AddressType(strings.ToUpper(strings.TrimSpace(a.Type)))
	if typ == "" {
		typ = domain.AddressHome
	}
	if !domain.ValidAddressType(typ) {
		return nil, apperr.New(apperr.CodeValidation, "Address type must be HOME, OFFICE, TEMPLE or OTHER")
	}
	addr := &domain.Address{
		Type:      typ,
		Label:     sanitize.Text(a.Label),
		Line1:     sanitize.Text(a.Line1),
		Line2:     sanitize.Text(a.Line2),
		Landmark:  sanitize.Text(a.Landmark),
		City:      sanitize.Text(a.City),
		State:     sanitize.Text(a.State),
		Pincode:   strings.TrimSpace(a.Pincode),
		Country:   strings.ToUpper(strings.TrimSpace(a.Country)),
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
	}
	missing := map[string]any{}
	for field, v := range map[string]string{"line1": addr.Line1, "city": addr.City, "state": addr.State, "pincode": addr.Pincode} {
		if v == "" {
			missing[field] = "required"
		}
	}
	if len(missing) > 0 {
		return nil, apperr.New(apperr.CodeValidation, "Address is incomplete").WithDetails(missing)
	}
	return addr, nil
}

// CreateInput is the Create request.
type CreateInput struct {
	Name    string        `json:"name"`
	Address *AddressInput `json:"address"`
}

func cleanName(raw string) (string, error) {
	name := sanitize.Text(raw)
	if name == "" {
		return "", apperr.New(apperr.CodeValidation, "Household name is required")
	}
	if len([]rune(name)) > 100 {
		return "", apperr.New(apperr.CodeValidation, "Household name is too long")
	}
	return name, nil
}

// Create makes userID the head of a new household. The head check and the insert are not
// atomic; the partial unique index on active head memberships rejects the losing writer.
func (s *HouseholdService) Create(ctx context.Context, userID string, in CreateInput) (*domain.Household, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	var addr *domain.Address
	if in.Address != nil {
		if addr, err = in.Address.toDomain(); err != nil {
			return nil, err
		}
	}
	isHead, err := s.households.IsUserHead(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionCreate, Caller: engine.Party{ID: userID, HeadsAny: isHead}}); err != nil {
		return nil, err
	}
	h, err := s.households.Create(ctx, userID, name, addr)
	if errors.Is(err, repository.ErrAlreadyHead) {
		return nil, apperr.New(apperr.CodeAlreadyHead, violationMessages[apperr.CodeAlreadyHead])
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.publish(ctx, userID, eventdomain.TypeHouseholdCreated, eventdomain.ResourceHousehold, h.ID, nil)
	return h, nil
}

// Get returns the household when userID is an active member.
func (s *HouseholdService) Get(ctx context.Context, userID, householdID string) (*domain.Household, error) {
	h, err := s.load(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionView, Caller: party(h, userID)}); err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateName renames the household. Head only.
func (s *HouseholdService) UpdateName(ctx context.Context, userID, householdID, rawName string) (*domain.Household, error) {
	name, err := cleanName(rawName)
	if err != nil {
		return nil, err
	}
	h, err := s.load(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionUpdateHousehold, Caller: party(h, userID)}); err != nil {
		return nil, err
	}
	if err := s.households.UpdateName(ctx, householdID, name); err != nil {
		return nil, apperr.Internal(err)
	}
	s.publish(ctx, userID, eventdomain.TypeHouseholdRenamed, eventdomain.ResourceHousehold, householdID, map[string]any{"name": name})
	return s.load(ctx, householdID)
}

// InviteInput is the Invite request.
type InviteInput struct {
	Contact string `json:"contact"`
	Role    string `json:"role"`
}

// InviteResult is a created invite with its shareable link.
type InviteResult struct {
	*domain.Invite
	InviteLink string `json:"inviteLink"`
}

// Invite offers contact a role in the household. Head only.
func (s *HouseholdService) Invite(ctx context.Context, userID, householdID string, in InviteInput) (*InviteResult, error) {
	contact := strings.TrimSpace(in.Contact)
	if security.ClassifyContact(contact) == security.ChannelEmail {
		contact = strings.ToLower(contact)
	}
	if contact == "" {
		return nil, apperr.New(apperr.CodeValidation, "Contact is required")
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(in.Role)))

	h, err := s.load(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionInvite, Caller: party(h, userID), NewRole: string(role)}); err != nil {
		return nil, err
	}

	invitee, err := s.users.GetByIdentifier(ctx, contact)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	var inviteeID string
	if invitee != nil {
		if h.Member(invitee.ID) != nil {
			return nil, apperr.New(apperr.CodeAlreadyMember, "User is already a member")
		}
		inviteeID = invitee.ID
	}

	token, err := security.GenerateInviteToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	now := s.now().UTC()
	inv := &domain.Invite{
		ID:             uuid.New().String(),
		HouseholdID:    householdID,
		InviterID:      userID,
		InviteeContact: contact,
		InviteeUserID:  inviteeID,
		Role:           role,
		Token:          token,
		Status:         domain.InvitePending,
		ExpiresAt:      now.Add(domain.InviteTTL),
		CreatedAt:      now,
	}
	if err := s.households.CreateInvite(ctx, inv); err != nil {
		return nil, apperr.Internal(err)
	}
	s.publish(ctx, userID, eventdomain.TypeMemberInvited, eventdomain.ResourceInvite, inv.ID,
		map[string]any{"household_id": householdID, "role": string(role)})
	return &InviteResult{Invite: inv, InviteLink: s.appURL + "/invite/" + token}, nil
}

// ListInvites returns the household's pending, unexpired invites. Members only.
func (s *HouseholdService) ListInvites(ctx context.Context, userID, householdID string) ([]*domain.Invite, error) {
	h, err := s.load(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionListInvites, Caller: party(h, userID)}); err != nil {
		return nil, err
	}
	invites, err := s.households.ListPendingInvites(ctx, householdID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return invites, nil
}

// InviteDetails is the public view of an invite.
type InviteDetails struct {
	ID            string              `json:"id"`
	HouseholdID   string              `json:"householdId"`
	HouseholdName string              `json:"householdName"`
	InviterName   string              `json:"inviterName"`
	Role          domain.Role         `json:"role"`
	Status        domain.InviteStatus `json:"status"`
	ExpiresAt     time.Time           `json:"expiresAt"`
}

// GetInvite describes the invite behind token. Lapsed pending invites report EXPIRED.
func (s *HouseholdService) GetInvite(ctx context.Context, token string) (*InviteDetails, error) {
	inv, err := s.findInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	out := &InviteDetails{
		ID:          inv.ID,
		HouseholdID: inv.HouseholdID,
		Role:        inv.Role,
		Status:      inv.Status,
		ExpiresAt:   inv.ExpiresAt,
	}
	if out.Status == domain.InvitePending && inv.Expired(s.now()) {
		out.Status = domain.InviteExpired
	}
	h, err := s.households.GetByID(ctx, inv.HouseholdID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if h != nil {
		out.HouseholdName = h.Name
	}
	inviter, err := s.users.GetByID(ctx, inv.InviterID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if inviter != nil && inviter.Profile != nil {
		out.InviterName = inviter.Profile.FullName
	}
	return out, nil
}

func (s *HouseholdService) findInvite(ctx context.Context, token string) (*domain.Invite, error) {
	inv, err := s.households.GetInviteByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if inv == nil {
		return nil, apperr.New(apperr.CodeInviteNotFound, "Invitation not found")
	}
	return inv, nil
}

// pendingInvite loads an invite that can still be answered.
func (s *HouseholdService) pendingInvite(ctx context.Context, token string) (*domain.Invite, error) {
	inv, err := s.findInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitePending {
		return nil, apperr.New(apperr.CodeInviteAlreadyUsed, "Invitation has already been used")
	}
	if inv.Expired(s.now()) {
		return nil, apperr.New(apperr.CodeInviteExpired, "Invitation has expired")
	}
	return inv, nil
}

// AcceptInvite joins userID to the invite's household. Possession of the token is the only
// proof required; the accepting account's contact is not compared to the invitee contact.
func (s *HouseholdService) AcceptInvite(ctx context.Context, userID, token string) (*domain.Household, error) {
	inv, err := s.pendingInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	h, err := s.load(ctx, inv.HouseholdID)
	if err != nil {
		return nil, err
	}
	if h.Member(userID) != nil {
		return nil, apperr.New(apperr.CodeAlreadyMember, "User is already a member")
	}
	if _, err := s.households.AcceptInvite(ctx, inv.Token, userID); err != nil {
		if errors.Is(err, repository.ErrInviteNotPending) {
			return nil, apperr.New(apperr.CodeInviteAlreadyUsed, "Invitation has already been used")
		}
		return nil, apperr.Internal(err)
	}
	s.publish(ctx, userID, eventdomain.TypeInviteAccepted, eventdomain.ResourceInvite, inv.ID,
		map[string]any{"household_id": inv.HouseholdID, "role": string(inv.Role)})
	return s.load(ctx, inv.HouseholdID)
}

// DeclineInvite marks a pending, unexpired invite DECLINED.
func (s *HouseholdService) DeclineInvite(ctx context.Context, userID, token string) error {
	inv, err := s.pendingInvite(ctx, token)
	if err != nil {
		return err
	}
	if err := s.households.DeclineInvite(ctx, inv.Token); err != nil {
		if errors.Is(err, repository.ErrInviteNotPending) {
			return apperr.New(apperr.CodeInviteAlreadyUsed, "Invitation has already been used")
		}
		return apperr.Internal(err)
	}
	s.publish(ctx, userID, eventdomain.TypeInviteDeclined, eventdomain.ResourceInvite, inv.ID,
		map[string]any{"household_id": inv.HouseholdID})
	return nil
}

// UpdateMemberRole changes a member between ADULT and CHILD. Head only.
func (s *HouseholdService) UpdateMemberRole(ctx context.Context, userID, householdID, targetID, rawRole string) error {
	role := domain.Role(strings.ToUpper(strings.TrimSpace(rawRole)))
	h, err := s.load(ctx, householdID)
	if err != nil {
		return err
	}
	target := party(h, targetID)
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionUpdateRole, Caller: party(h, userID), Target: &target, NewRole: string(role)}); err != nil {
		return err
	}
	if err := s.households.UpdateMemberRole(ctx, householdID, targetID, role); err != nil {
		return memberError(err)
	}
	s.publish(ctx, userID, eventdomain.TypeMemberRoleUpdate, eventdomain.ResourceHousehold, householdID,
		map[string]any{"target_user_id": targetID, "role": string(role)})
	return nil
}

// RemoveMember soft-removes another member. Head only.
func (s *HouseholdService) RemoveMember(ctx context.Context, userID, householdID, targetID string) error {
	h, err := s.load(ctx, householdID)
	if err != nil {
		return err
	}
	target := party(h, targetID)
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionRemoveMember, Caller: party(h, userID), Target: &target}); err != nil {
		return err
	}
	if err := s.households.RemoveMember(ctx, householdID, targetID, domain.StatusRemoved); err != nil {
		return memberError(err)
	}
	s.publish(ctx, userID, eventdomain.TypeMemberRemoved, eventdomain.ResourceHousehold, householdID,
		map[string]any{"target_user_id": targetID})
	return nil
}

// TransferHead hands the head role to an adult member. Head only.
func (s *HouseholdService) TransferHead(ctx context.Context, userID, householdID, newHeadID string) error {
	h, err := s.load(ctx, householdID)
	if err != nil {
		return err
	}
	target := party(h, newHeadID)
	if target.IsMember {
		if target.HeadsAny, err = s.households.IsUserHead(ctx, newHeadID); err != nil {
			return apperr.Internal(err)
		}
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionTransferHead, Caller: party(h, userID), Target: &target}); err != nil {
		return err
	}
	if err := s.households.TransferHead(ctx, householdID, newHeadID); err != nil {
		if errors.Is(err, repository.ErrAlreadyHead) {
			return apperr.New(apperr.CodeAlreadyHead, "Target user already heads a household")
		}
		return memberError(err)
	}
	s.publish(ctx, userID, eventdomain.TypeHeadTransferred, eventdomain.ResourceHousehold, householdID,
		map[string]any{"new_head_user_id": newHeadID})
	return nil
}

// Leave removes userID from the household with status LEFT. The head must transfer first.
func (s *HouseholdService) Leave(ctx context.Context, userID, householdID string) error {
	h, err := s.load(ctx, householdID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, engine.Facts{Action: engine.ActionLeave, Caller: party(h, userID)}); err != nil {
		return err
	}
	if err := s.households.RemoveMember(ctx, householdID, userID, domain.StatusLeft); err != nil {
		return memberError(err)
	}
	s.publish(ctx, userID, eventdomain.TypeMemberLeft, eventdomain.ResourceHousehold, householdID, nil)
	return nil
}

func memberError(err error) error {
	if errors.Is(err, repository.ErrNotMember) {
		return apperr.New(apperr.CodeNotAMember, violationMessages[apperr.CodeNotAMember])
	}
	return apperr.Internal(err)
}

func (s *HouseholdService) publish(ctx context.Context, userID, typ, resource, resourceID string, meta map[string]any) {
	s.events.Publish(ctx, eventdomain.Event{
		Type:       typ,
		UserID:     userID,
		Resource:   resource,
		ResourceID: resourceID,
		Metadata:   meta,
	})
}
