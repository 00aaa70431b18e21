package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("users", func() {
		It("should assign ids on create", func() {
			u1 := &User{TelegramID: 100, Username: "alice"}
			u2 := &User{TelegramID: 200, Username: "bob"}
			Expect(db.CreateUser(u1)).To(Succeed())
			Expect(db.CreateUser(u2)).To(Succeed())
			Expect(u1.ID).NotTo(BeZero())
			Expect(u2.ID).NotTo(Equal(u1.ID))
		})

		It("should look up by telegram id", func() {
			Expect(db.CreateUser(&User{TelegramID: 100, Username: "alice"})).To(Succeed())

			u, err := db.GetUserByTelegramID(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Username).To(Equal("alice"))

			_, err = db.GetUserByTelegramID(999)
			Expect(err).To(MatchError(ErrUserNotFound))
		})

		It("should look up by username case-insensitively", func() {
			Expect(db.CreateUser(&User{TelegramID: 100, Username: "Alice"})).To(Succeed())

			u, err := db.GetUserByUsername("alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.TelegramID).To(Equal(int64(100)))
		})

		It("should persist user updates", func() {
			u := &User{TelegramID: 100, Username: "alice"}
			Expect(db.CreateUser(u)).To(Succeed())

			u.Username = "alice_new"
			Expect(db.SaveUser(u)).To(Succeed())

			got, err := db.GetUserByTelegramID(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("alice_new"))
		})
	})

	Describe("teams and memberships", func() {
		var alice, bob *User

		BeforeEach(func() {
			alice = &User{TelegramID: 100, Username: "alice"}
			bob = &User{TelegramID: 200, Username: "bob"}
			Expect(db.CreateUser(alice)).To(Succeed())
			Expect(db.CreateUser(bob)).To(Succeed())
		})

		It("should create a team with its admin in one step", func() {
			team := &Team{Name: "finance"}
			m := &Membership{UserID: alice.ID, IsAdmin: true}
			Expect(db.CreateTeamWithAdmin(team, m)).To(Succeed())

			Expect(team.ID).NotTo(BeZero())
			Expect(m.TeamID).To(Equal(team.ID))

			got, err := db.MembershipForUser(alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsAdmin).To(BeTrue())
		})

		It("should reject duplicate team names regardless of case", func() {
			Expect(db.CreateTeamWithAdmin(&Team{Name: "finance"}, &Membership{UserID: alice.ID, IsAdmin: true})).To(Succeed())

			err := db.CreateTeamWithAdmin(&Team{Name: "Finance"}, &Membership{UserID: bob.ID, IsAdmin: true})
			Expect(err).To(MatchError(ErrTeamNameTaken))
		})

		It("should not leave a team behind when the admin membership is rejected", func() {
			Expect(db.CreateTeamWithAdmin(&Team{Name: "finance"}, &Membership{UserID: alice.ID, IsAdmin: true})).To(Succeed())

			err := db.CreateTeamWithAdmin(&Team{Name: "ops"}, &Membership{UserID: alice.ID, IsAdmin: true})
			Expect(err).To(MatchError(ErrAlreadyInTeam))

			// The rolled-back team must not block the name
			Expect(db.CreateTeamWithAdmin(&Team{Name: "ops"}, &Membership{UserID: bob.ID, IsAdmin: true})).To(Succeed())
		})

		It("should enforce one membership per user", func() {
			team := &Team{Name: "finance"}
			Expect(db.CreateTeamWithAdmin(team, &Membership{UserID: alice.ID, IsAdmin: true})).To(Succeed())

			Expect(db.CreateMembership(&Membership{TeamID: team.ID, UserID: bob.ID})).To(Succeed())
			err := db.CreateMembership(&Membership{TeamID: team.ID, UserID: bob.ID})
			Expect(err).To(MatchError(ErrAlreadyInTeam))
		})

		It("should report ErrNoTeam for a user without membership", func() {
			_, err := db.MembershipForUser(bob.ID)
			Expect(err).To(MatchError(ErrNoTeam))
		})

		It("should fetch teams by id", func() {
			team := &Team{Name: "finance"}
			Expect(db.CreateTeamWithAdmin(team, &Membership{UserID: alice.ID, IsAdmin: true})).To(Succeed())

			got, err := db.GetTeam(team.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("finance"))
		})
	})

	Describe("receipts", func() {
		var teamID int64

		day := func(d int) time.Time {
			return time.Date(2025, 2, d, 0, 0, 0, 0, time.UTC)
		}

		BeforeEach(func() {
			alice := &User{TelegramID: 100, Username: "alice"}
			Expect(db.CreateUser(alice)).To(Succeed())
			team := &Team{Name: "finance"}
			Expect(db.CreateTeamWithAdmin(team, &Membership{UserID: alice.ID, IsAdmin: true})).To(Succeed())
			teamID = team.ID
		})

		It("should assign ids on create and fetch by id", func() {
			r := &Receipt{TeamID: teamID, Date: day(1), Amount: 12345, Status: StatusPending}
			Expect(db.CreateReceipt(r)).To(Succeed())
			Expect(r.ID).NotTo(BeZero())

			got, err := db.GetReceipt(r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Amount).To(Equal(int64(12345)))
			Expect(got.Status).To(Equal(StatusPending))
		})

		It("should return ErrReceiptNotFound for unknown ids", func() {
			_, err := db.GetReceipt(42)
			Expect(err).To(MatchError(ErrReceiptNotFound))
		})

		It("should list a team's receipts in the window ordered by date", func() {
			for _, d := range []int{10, 3, 7, 20} {
				Expect(db.CreateReceipt(&Receipt{TeamID: teamID, Date: day(d), Amount: int64(d), Status: StatusPending})).To(Succeed())
			}
			// Another team's receipt must not leak in
			Expect(db.CreateReceipt(&Receipt{TeamID: teamID + 1, Date: day(5), Amount: 999, Status: StatusPending})).To(Succeed())

			receipts, err := db.ListTeamReceipts(teamID, day(3), day(10))
			Expect(err).NotTo(HaveOccurred())

			var dates []time.Time
			for _, r := range receipts {
				Expect(r.TeamID).To(Equal(teamID))
				dates = append(dates, r.Date)
			}
			Expect(dates).To(Equal([]time.Time{day(3), day(7), day(10)}))
		})

		It("should return an empty slice for an empty window", func() {
			receipts, err := db.ListTeamReceipts(teamID, day(1), day(28))
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
			Expect(receipts).NotTo(BeNil())
		})

		It("should update the status in place", func() {
			r := &Receipt{TeamID: teamID, Date: day(1), Amount: 100, Status: StatusPending}
			Expect(db.CreateReceipt(r)).To(Succeed())

			Expect(db.UpdateReceiptStatus(r.ID, StatusApproved)).To(Succeed())

			got, err := db.GetReceipt(r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(StatusApproved))
		})

		It("should reject status updates for unknown receipts", func() {
			Expect(db.UpdateReceiptStatus(42, StatusApproved)).To(MatchError(ErrReceiptNotFound))
		})
	})
})
